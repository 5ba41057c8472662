package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tenant-onboarding-backend/db/models"
	isvc "tenant-onboarding-backend/internal/services"

	"github.com/google/uuid"
)

// In-memory collaborators for flow tests.

type fakeConversationRepo struct {
	mu     sync.Mutex
	states map[string]models.ConversationState
	seen   map[string]bool
	once   map[string]bool
}

func newFakeConversationRepo() *fakeConversationRepo {
	return &fakeConversationRepo{
		states: make(map[string]models.ConversationState),
		seen:   make(map[string]bool),
		once:   make(map[string]bool),
	}
}

func (r *fakeConversationRepo) GetState(ctx context.Context, phone string) (*models.ConversationState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.states[phone]; ok {
		copied := s
		return &copied, nil
	}
	return nil, nil
}

func (r *fakeConversationRepo) PutState(ctx context.Context, state *models.ConversationState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[state.PhoneNumber] = *state
	return nil
}

func (r *fakeConversationRepo) DeleteState(ctx context.Context, phone string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.states, phone)
	return nil
}

func (r *fakeConversationRepo) MarkMessageSeen(ctx context.Context, messageID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seen[messageID] {
		return false, nil
	}
	r.seen[messageID] = true
	return true, nil
}

func (r *fakeConversationRepo) AcquireOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.once[key] {
		return false, nil
	}
	r.once[key] = true
	return true, nil
}

func (r *fakeConversationRepo) ReleaseOnce(ctx context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.once, key)
	return nil
}

type fakeTenantRepo struct {
	mu      sync.Mutex
	tenants map[uuid.UUID]*models.Tenant
}

func newFakeTenantRepo(tenants ...*models.Tenant) *fakeTenantRepo {
	repo := &fakeTenantRepo{tenants: make(map[uuid.UUID]*models.Tenant)}
	for _, t := range tenants {
		if t.ID == uuid.Nil {
			t.ID = uuid.New()
		}
		repo.tenants[t.ID] = t
	}
	return repo
}

func (r *fakeTenantRepo) CreateTenant(tenant *models.Tenant) (*models.Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tenant.ID == uuid.Nil {
		tenant.ID = uuid.New()
	}
	r.tenants[tenant.ID] = tenant
	return tenant, nil
}

func (r *fakeTenantRepo) GetTenantByID(id uuid.UUID) (*models.Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tenants[id]; ok {
		return t, nil
	}
	return nil, nil
}

func (r *fakeTenantRepo) GetTenantByPhone(phone string) (*models.Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tenants {
		if t.PhoneNumber == phone {
			return t, nil
		}
	}
	return nil, nil
}

func (r *fakeTenantRepo) UpdateTenantFields(id uuid.UUID, fields map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tenants[id]
	if !ok {
		return fmt.Errorf("tenant %s not found", id)
	}
	for key, value := range fields {
		switch key {
		case "occupation":
			v := value.(string)
			t.Occupation = &v
		case "family_status":
			v := value.(string)
			t.FamilyStatus = &v
		case "number_of_children":
			t.NumberOfChildren = value.(int)
		case "id_number":
			v := value.(string)
			t.IDNumber = &v
		case "correction_notes":
			v := value.(string)
			t.CorrectionNotes = &v
		case "whatsapp_status":
			t.WhatsAppStatus = value.(models.WhatsAppStatus)
		}
	}
	return nil
}

func (r *fakeTenantRepo) UpdateWhatsAppStatus(id uuid.UUID, status models.WhatsAppStatus) error {
	return r.UpdateTenantFields(id, map[string]interface{}{"whatsapp_status": status})
}

func (r *fakeTenantRepo) UpdateDocumentsStatus(id uuid.UUID, statusMap models.DocumentStatusMap) error {
	encoded, err := models.EncodeDocumentStatus(statusMap)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tenants[id]; ok {
		t.DocumentsStatus = encoded
	}
	return nil
}

func (r *fakeTenantRepo) LinkGuarantor(tenantID uuid.UUID, slot int, guarantorID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tenants[tenantID]
	if !ok {
		return fmt.Errorf("tenant %s not found", tenantID)
	}
	if slot == 2 {
		t.Guarantor2ID = &guarantorID
	} else {
		t.Guarantor1ID = &guarantorID
	}
	return nil
}

func (r *fakeTenantRepo) GetFilteredTenants(limit, offset int, filters map[string]string) ([]models.Tenant, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Tenant
	for _, t := range r.tenants {
		out = append(out, *t)
	}
	return out, int64(len(out)), nil
}

func (r *fakeTenantRepo) GetStuckTenants(before int64) ([]models.Tenant, error) {
	return nil, nil
}

type fakeGuarantorRepo struct {
	mu         sync.Mutex
	guarantors map[uuid.UUID]*models.Guarantor
	upserts    int
}

func newFakeGuarantorRepo(guarantors ...*models.Guarantor) *fakeGuarantorRepo {
	repo := &fakeGuarantorRepo{guarantors: make(map[uuid.UUID]*models.Guarantor)}
	for _, g := range guarantors {
		if g.ID == uuid.Nil {
			g.ID = uuid.New()
		}
		repo.guarantors[g.ID] = g
	}
	return repo
}

func (r *fakeGuarantorRepo) GetGuarantorByPhone(phone string) (*models.Guarantor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, g := range r.guarantors {
		if g.PhoneNumber == phone {
			return g, nil
		}
	}
	return nil, nil
}

func (r *fakeGuarantorRepo) GetGuarantorsByTenant(tenantID uuid.UUID) ([]models.Guarantor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Guarantor
	for _, g := range r.guarantors {
		if g.TenantID == tenantID {
			out = append(out, *g)
		}
	}
	return out, nil
}

func (r *fakeGuarantorRepo) UpsertGuarantor(guarantor *models.Guarantor) (*models.Guarantor, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upserts++
	for _, g := range r.guarantors {
		if g.TenantID == guarantor.TenantID && g.GuarantorNumber == guarantor.GuarantorNumber {
			g.FullName = guarantor.FullName
			g.PhoneNumber = guarantor.PhoneNumber
			return g, true, nil
		}
	}
	if guarantor.ID == uuid.Nil {
		guarantor.ID = uuid.New()
	}
	r.guarantors[guarantor.ID] = guarantor
	return guarantor, false, nil
}

func (r *fakeGuarantorRepo) UpdateWhatsAppStatus(id uuid.UUID, status models.WhatsAppStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.guarantors[id]; ok {
		g.WhatsAppStatus = status
	}
	return nil
}

func (r *fakeGuarantorRepo) UpdateDocumentsStatus(id uuid.UUID, statusMap models.DocumentStatusMap) error {
	encoded, err := models.EncodeDocumentStatus(statusMap)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.guarantors[id]; ok {
		g.DocumentsStatus = encoded
	}
	return nil
}

func (r *fakeGuarantorRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.guarantors)
}

// fakeGateway replays scripted outcomes.
type fakeGateway struct {
	interpret       func(q isvc.QuestionContext, raw string) isvc.ValidationOutcome
	validate        func(docType models.DocumentType) isvc.DocumentOutcome
	occupationClass models.OccupationClass
}

func (g *fakeGateway) Interpret(ctx context.Context, q isvc.QuestionContext, raw string) isvc.ValidationOutcome {
	if g.interpret != nil {
		return g.interpret(q, raw)
	}
	return isvc.RuleBasedInterpret(q, raw)
}

func (g *fakeGateway) ValidateDocument(ctx context.Context, docType models.DocumentType, fileBytes []byte, mimeType string, party isvc.PartyContext) isvc.DocumentOutcome {
	if g.validate != nil {
		return g.validate(docType)
	}
	return isvc.DocumentOutcome{Status: models.DocumentValidated, Confidence: 0.9}
}

func (g *fakeGateway) ClassifyOccupation(ctx context.Context, occupation string) models.OccupationClass {
	if g.occupationClass != "" {
		return g.occupationClass
	}
	return models.OccupationSalaried
}

type fakeDocumentStore struct{}

func (fakeDocumentStore) StoreTenantDocument(tenantID uuid.UUID, docType models.DocumentType, data []byte, mimeType string) (string, error) {
	return fmt.Sprintf("tenants/%s/%s", tenantID, docType), nil
}

func (fakeDocumentStore) StoreGuarantorDocument(guarantorID uuid.UUID, docType models.DocumentType, data []byte, mimeType string) (string, error) {
	return fmt.Sprintf("guarantors/%s/%s", guarantorID, docType), nil
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
	to       []string
}

func (n *fakeNotifier) NotifyAsync(ctx context.Context, to, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.to = append(n.to, to)
	n.messages = append(n.messages, body)
	return nil
}

func (n *fakeNotifier) sent() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.messages)
}
