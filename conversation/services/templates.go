package services

import (
	"fmt"
	"strings"

	"tenant-onboarding-backend/db/models"

	"github.com/shopspring/decimal"
)

// Outbound message texts. Kept in one place so wording changes don't touch
// flow logic.

func greetingMessage(tenant *models.Tenant) string {
	name := strings.TrimSpace(tenant.FullName)
	if name == "" {
		name = "there"
	}
	return fmt.Sprintf("Hi %s! I'm the onboarding assistant for %s. I'll walk you through confirming your details and collecting the documents needed for your rental application.\n\n%s",
		name, propertyLabel(tenant), confirmationMessage(tenant))
}

func confirmationMessage(tenant *models.Tenant) string {
	var b strings.Builder
	b.WriteString("Please confirm these details:\n")
	fmt.Fprintf(&b, "• Property: %s\n", propertyLabel(tenant))
	if tenant.NumberOfRooms > 0 {
		fmt.Fprintf(&b, "• Rooms: %d\n", tenant.NumberOfRooms)
	}
	if !tenant.MonthlyRentAmount.Equal(decimal.Zero) {
		fmt.Fprintf(&b, "• Monthly rent: %s\n", tenant.MonthlyRentAmount.StringFixed(0))
	}
	if tenant.MoveInDate != nil {
		fmt.Fprintf(&b, "• Move-in date: %s\n", tenant.MoveInDate.Format("02/01/2006"))
	}
	b.WriteString("\nIs everything correct? (yes/no)")
	return b.String()
}

func propertyLabel(tenant *models.Tenant) string {
	label := tenant.PropertyName
	if tenant.ApartmentNumber != "" {
		label = fmt.Sprintf("%s, apartment %s", label, tenant.ApartmentNumber)
	}
	if label == "" {
		return "your new apartment"
	}
	return label
}

const correctionAcknowledgement = "Thanks for flagging that. Please reply with what needs to be corrected and our team will review it. Once reviewed, I'll confirm the updated details with you."

const askOccupation = "Great! A few quick questions. What is your occupation?"

const askFamilyStatus = "What is your family status? (single, married, divorced, widowed)"

const askNumberOfChildren = "How many children do you have?"

func documentRequestMessage(docType models.DocumentType) string {
	switch docType {
	case models.DocumentIDCard:
		return "Now let's collect your documents. Please send a photo or PDF of your ID card."
	case models.DocumentSephach:
		return "Thanks! Next, please send your ID card appendix (sephach)."
	case models.DocumentPayslips:
		return "Next, please send your last 3 payslips."
	case models.DocumentPNL:
		return "Next, please send a profit-and-loss statement signed by your accountant."
	case models.DocumentBankStatements:
		return "Almost done! Please send your bank statements for the last 3 months."
	}
	return "Please send the next document."
}

func documentRejectedMessage(docType models.DocumentType, errs, warnings []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "There was a problem with the %s you sent:\n", documentLabel(docType))
	for _, e := range errs {
		fmt.Fprintf(&b, "• %s\n", e)
	}
	for _, w := range warnings {
		fmt.Fprintf(&b, "• %s\n", w)
	}
	fmt.Fprintf(&b, "\nPlease send the %s again.", documentLabel(docType))
	return b.String()
}

func documentErrorMessage(docType models.DocumentType) string {
	return fmt.Sprintf("I couldn't process the %s you sent. Please try sending it again as a clear photo or PDF.", documentLabel(docType))
}

func documentLabel(docType models.DocumentType) string {
	switch docType {
	case models.DocumentIDCard:
		return "ID card"
	case models.DocumentSephach:
		return "ID appendix"
	case models.DocumentPayslips:
		return "payslips"
	case models.DocumentPNL:
		return "profit-and-loss statement"
	case models.DocumentBankStatements:
		return "bank statements"
	}
	return string(docType)
}

func expectDocumentMessage(docType models.DocumentType) string {
	return fmt.Sprintf("Please send the %s as a photo or PDF so we can continue.", documentLabel(docType))
}

func askGuarantorMessage(slot int) string {
	ordinal := "first"
	if slot == 2 {
		ordinal = "second"
	}
	return fmt.Sprintf("We need details of your %s guarantor. Please send their full name and phone number.", ordinal)
}

func guarantorIntroMessage(guarantor *models.Guarantor, tenant *models.Tenant) string {
	return fmt.Sprintf("Hi %s! %s listed you as a guarantor for their rental at %s. To complete the application we need a few documents from you.\n\n%s",
		guarantor.FullName, tenant.FullName, propertyLabel(tenant), documentRequestMessage(models.DocumentIDCard))
}

const tenantWaitingMessage = "That's everything from your side! I've reached out to your guarantors. I'll let you know as soon as they've finished sending their documents."

const tenantAllDoneMessage = "Good news! Both of your guarantors have completed their documents. Your rental application is now complete — our team will be in touch shortly."

const guarantorDoneMessage = "That's all the documents we needed. Thank you for your help!"

const alreadyCompletedMessage = "You're all set — there's nothing more we need from you right now. Our team will be in touch."

const safeFallbackMessage = "Sorry, something went wrong on our side. Our team has been notified and will follow up with you shortly."
