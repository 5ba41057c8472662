package services

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"tenant-onboarding-backend/config"
	"tenant-onboarding-backend/db/models"

	"go.uber.org/zap"
)

// QuestionKind tells the gateway what category of answer the current step
// expects, which selects both the prompt and the rule-based fallback.
type QuestionKind string

const (
	QuestionConfirmation     QuestionKind = "confirmation"
	QuestionOccupation       QuestionKind = "occupation"
	QuestionFamilyStatus     QuestionKind = "family_status"
	QuestionNumberOfChildren QuestionKind = "number_of_children"
	QuestionGuarantorContact QuestionKind = "guarantor_contact"
)

type QuestionContext struct {
	Kind     QuestionKind
	Question string
	Context  map[string]any
}

// ValidationOutcome is the normalized reply for free-text interpretation.
// The gateway always returns a usable outcome, never an error.
type ValidationOutcome struct {
	IsValid      bool           `json:"is_valid"`
	ParsedFields map[string]any `json:"parsed_fields"`
	Feedback     string         `json:"feedback"`
	Confidence   float64        `json:"confidence"`
}

// DocumentOutcome is the normalized reply for media validation.
type DocumentOutcome struct {
	Status          models.DocumentStatus `json:"status"`
	ExtractedFields map[string]any        `json:"extracted_fields"`
	Errors          []string              `json:"errors"`
	Warnings        []string              `json:"warnings"`
	Confidence      float64               `json:"confidence"`
}

// PartyContext carries the identity facts documents are cross-checked
// against.
type PartyContext struct {
	FullName string
	IDNumber string
}

// ValidationGateway interprets free text and validates uploaded documents.
type ValidationGateway interface {
	Interpret(ctx context.Context, q QuestionContext, raw string) ValidationOutcome
	ValidateDocument(ctx context.Context, docType models.DocumentType, fileBytes []byte, mimeType string, party PartyContext) DocumentOutcome
	ClassifyOccupation(ctx context.Context, occupation string) models.OccupationClass
}

// contentGenerator is the slice of GeminiService the gateway needs; tests
// substitute a canned implementation.
type contentGenerator interface {
	GenerateContentWithRetry(ctx context.Context, prompt string, cfg *RetryConfig) (string, error)
	ProcessDocumentWithPrompt(ctx context.Context, fileBytes []byte, mimeType string, prompt string) (string, error)
}

type GeminiValidationGateway struct {
	generator   contentGenerator
	callTimeout time.Duration
}

func NewGeminiValidationGateway(gemini *GeminiService) *GeminiValidationGateway {
	return &GeminiValidationGateway{
		generator:   gemini,
		callTimeout: 30 * time.Second,
	}
}

// Interpret asks the model to turn the raw reply into structured fields and
// falls back to the deterministic interpreter whenever the model result is
// unusable. The orchestrator never blocks on an uninterpretable reply.
func (g *GeminiValidationGateway) Interpret(ctx context.Context, q QuestionContext, raw string) ValidationOutcome {
	prompt := buildInterpretPrompt(q, raw)

	callCtx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()

	response, err := g.generator.GenerateContentWithRetry(callCtx, prompt, nil)
	if err != nil {
		config.Logger.Warn("Gateway call failed, using rule-based fallback",
			zap.String("kind", string(q.Kind)),
			zap.Error(err),
		)
		return RuleBasedInterpret(q, raw)
	}

	var outcome ValidationOutcome
	if err := json.Unmarshal([]byte(extractJSON(response)), &outcome); err != nil {
		config.Logger.Warn("Gateway reply was not structured, using rule-based fallback",
			zap.String("kind", string(q.Kind)),
			zap.Error(err),
		)
		return RuleBasedInterpret(q, raw)
	}

	// Trust the structured result unless it carries nothing usable.
	if unusableFields(outcome.ParsedFields) {
		config.Logger.Warn("Gateway reply carried no parsed fields, using rule-based fallback",
			zap.String("kind", string(q.Kind)),
		)
		return RuleBasedInterpret(q, raw)
	}

	return outcome
}

// unusableFields reports an empty map or a single null-valued field.
func unusableFields(fields map[string]any) bool {
	if len(fields) == 0 {
		return true
	}
	if len(fields) == 1 {
		for _, v := range fields {
			if v == nil {
				return true
			}
		}
	}
	return false
}

func buildInterpretPrompt(q QuestionContext, raw string) string {
	var b strings.Builder
	b.WriteString("You are interpreting a WhatsApp reply in a rental onboarding conversation. RESPOND WITH ONLY VALID JSON.\n\n")
	fmt.Fprintf(&b, "QUESTION: %q\nUSER RESPONSE: %q\n\n", q.Question, raw)

	switch q.Kind {
	case QuestionOccupation:
		b.WriteString(`Any meaningful work description is valid; empty or nonsense is invalid.
Respond with:
{"is_valid": true, "feedback": "Thanks for the occupation details", "parsed_fields": {"occupation": "<the occupation>"}, "confidence": 0.9}`)
	case QuestionFamilyStatus:
		b.WriteString(`Valid answers describe a marital status (single, married, divorced, widowed).
Respond with:
{"is_valid": true, "feedback": "Thanks", "parsed_fields": {"family_status": "<normalized status>"}, "confidence": 0.9}`)
	case QuestionNumberOfChildren:
		b.WriteString(`Extract the number of children; words like "none" mean 0.
Respond with:
{"is_valid": true, "feedback": "Thanks", "parsed_fields": {"number_of_children": <count>}, "confidence": 0.9}`)
	case QuestionGuarantorContact:
		b.WriteString(`Extract the guarantor's full name and phone number from the message.
Respond with:
{"is_valid": true, "feedback": "Thanks", "parsed_fields": {"name": "<full name>", "phone": "<phone number>"}, "confidence": 0.9}
Set is_valid to false with empty parsed_fields if either part is missing.`)
	default:
		b.WriteString(`Decide whether the user confirmed, rejected, or was unclear.
Respond with:
{"is_valid": true, "feedback": "Thanks", "parsed_fields": {"confirmed": true|false|null}, "confidence": 0.9}`)
	}

	return b.String()
}

// geminiDocumentReply is the JSON shape the document prompts ask for.
type geminiDocumentReply struct {
	IsValid         bool           `json:"is_valid"`
	ExtractedFields map[string]any `json:"extracted_fields"`
	Errors          []string       `json:"errors"`
	Warnings        []string       `json:"warnings"`
	Confidence      float64        `json:"confidence"`
}

// ValidateDocument sends the file to the model for extraction and applies
// the local identity cross-checks. External failures yield an error-status
// outcome rather than a Go error, so the orchestrator can re-request the
// document and keep the conversation alive.
func (g *GeminiValidationGateway) ValidateDocument(ctx context.Context, docType models.DocumentType, fileBytes []byte, mimeType string, party PartyContext) DocumentOutcome {
	prompt := buildDocumentPrompt(docType, party)

	callCtx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()

	response, err := g.generator.ProcessDocumentWithPrompt(callCtx, fileBytes, mimeType, prompt)
	if err != nil {
		config.Logger.Error("Document validation call failed",
			zap.String("documentType", string(docType)),
			zap.Error(err),
		)
		return DocumentOutcome{
			Status: models.DocumentError,
			Errors: []string{"the document could not be processed"},
		}
	}

	var reply geminiDocumentReply
	if err := json.Unmarshal([]byte(extractJSON(response)), &reply); err != nil {
		config.Logger.Error("Document validation reply was not structured",
			zap.String("documentType", string(docType)),
			zap.Error(err),
		)
		return DocumentOutcome{
			Status: models.DocumentError,
			Errors: []string{"the document could not be processed"},
		}
	}

	outcome := DocumentOutcome{
		Status:          models.DocumentValidated,
		ExtractedFields: reply.ExtractedFields,
		Errors:          reply.Errors,
		Warnings:        reply.Warnings,
		Confidence:      reply.Confidence,
	}
	if !reply.IsValid {
		outcome.Status = models.DocumentRejected
	}

	applyIdentityChecks(&outcome, docType, party)

	if len(outcome.Errors) > 0 {
		outcome.Status = models.DocumentRejected
	}
	return outcome
}

// applyIdentityChecks layers deterministic cross-checks on top of the model
// reply for identity documents.
func applyIdentityChecks(outcome *DocumentOutcome, docType models.DocumentType, party PartyContext) {
	if docType != models.DocumentIDCard && docType != models.DocumentSephach {
		return
	}

	idNumber, _ := outcome.ExtractedFields["id_number"].(string)
	if docType == models.DocumentIDCard {
		switch {
		case idNumber == "":
			outcome.Errors = append(outcome.Errors, "ID number not found in document")
		case !nineDigits.MatchString(idNumber):
			outcome.Errors = append(outcome.Errors, "ID number must be 9 digits")
		case party.IDNumber != "" && idNumber != party.IDNumber:
			outcome.Errors = append(outcome.Errors, "ID number doesn't match the one on record")
		}
	}

	name, _ := outcome.ExtractedFields["name"].(string)
	if name == "" {
		outcome.Warnings = append(outcome.Warnings, "name not found in document")
		return
	}
	if party.FullName != "" && !NamesMatch(name, party.FullName) {
		outcome.Errors = append(outcome.Errors, fmt.Sprintf("name on document doesn't match expected name %q", party.FullName))
	}
}

var nineDigits = regexp.MustCompile(`^\d{9}$`)

func buildDocumentPrompt(docType models.DocumentType, party PartyContext) string {
	var b strings.Builder
	b.WriteString("You are validating a document uploaded during rental onboarding. RESPOND WITH ONLY VALID JSON:\n")
	b.WriteString(`{"is_valid": bool, "extracted_fields": {...}, "errors": [], "warnings": [], "confidence": <0..1>}` + "\n\n")

	switch docType {
	case models.DocumentIDCard:
		b.WriteString("The document must be a national identity card. Extract id_number, name, date_of_birth, date_of_expiry. Reject anything that is not an identity card or is expired.\n")
	case models.DocumentSephach:
		b.WriteString("The document must be the identity card appendix listing family members. Extract name and any listed children. Reject unrelated documents.\n")
	case models.DocumentPayslips:
		b.WriteString("The document must be a recent salary payslip. Extract employee_name, employer, net_salary, period. Reject statements older than three months.\n")
	case models.DocumentPNL:
		b.WriteString("The document must be a profit-and-loss statement signed by an accountant. Extract business_name, period, net_profit. Reject unsigned drafts.\n")
	case models.DocumentBankStatements:
		b.WriteString("The document must be a bank statement covering the last three months. Extract account_holder, bank, period. Reject partial screenshots.\n")
	}

	if party.FullName != "" {
		fmt.Fprintf(&b, "\nThe document should belong to %q. Spelling and transliteration may differ; flag a clear mismatch as an error.\n", party.FullName)
	}
	return b.String()
}

// ClassifyOccupation decides between the salaried and self-employed
// financial-document tracks. Model first, keyword fallback second; the
// answer is cached by the underlying client so repeated slots are cheap.
func (g *GeminiValidationGateway) ClassifyOccupation(ctx context.Context, occupation string) models.OccupationClass {
	prompt := fmt.Sprintf(`Classify this occupation for a rental application: %q.
A salaried employee receives a salary from an employer. A self-employed person runs their own business (owner, freelancer, consultant, contractor).
Return ONLY one word: "SALARIED" or "SELF_EMPLOYED".`, occupation)

	callCtx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()

	response, err := g.generator.GenerateContentWithRetry(callCtx, prompt, nil)
	if err != nil {
		config.Logger.Warn("Occupation classification call failed, using keyword fallback",
			zap.String("occupation", occupation),
			zap.Error(err),
		)
		return classifyOccupationByKeywords(occupation)
	}

	if strings.Contains(strings.ToUpper(response), "SELF_EMPLOYED") || strings.Contains(strings.ToUpper(response), "SELF-EMPLOYED") {
		return models.OccupationSelfEmployed
	}
	return models.OccupationSalaried
}

// extractJSON pulls a JSON object out of a model reply, tolerating markdown
// code fences and surrounding prose.
func extractJSON(response string) string {
	if m := fencedJSON.FindStringSubmatch(response); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := bareObject.FindString(response); m != "" {
		return strings.TrimSpace(m)
	}
	return strings.TrimSpace(response)
}

var (
	fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")
	bareObject = regexp.MustCompile(`(?s)\{.*\}`)
)
