// Package e2e provides end-to-end tests over a corpus of banking procedure documents.
package e2e

import (
	"fmt"
	"regexp"
	"strings"
)

// ProcedureDocument is one procedure file in the E2E corpus.
type ProcedureDocument struct {
	Name    string // file base name without extension
	Title   string
	Content string
}

// QuestionTestCase defines a question and the document that must appear among the answer sources.
type QuestionTestCase struct {
	Question    string
	ExpectedDoc string // file base name without extension
	Description string
}

// Corpus holds documents and question test cases for E2E tests.
type Corpus struct {
	Documents      []ProcedureDocument
	TestCases      []QuestionTestCase
	TotalDocs      int
	TotalQuestions int
}

type topic struct {
	title    string
	question string
	content  string
}

// Each topic has at least one word that appears in no other topic, and the question uses it.
var topics = []topic{
	{"Account Opening", "What documents are required to open a current account?",
		"To open a current account the customer provides: 1. ID card 2. Proof of address 3. Initial deposit"},
	{"Savings Account", "What is the minimum balance of a savings passbook?",
		"A savings passbook needs a minimum balance of 10 euros. Interest is credited every quarter."},
	{"Account Closure", "How do I close a dormant account?",
		"Step 1: Confirm the dormant account has no pending operations. Step 2: Transfer the remaining balance. Step 3: Archive the closure form."},
	{"Stolen Card", "What should an agent do when a card is stolen?",
		"When a card is stolen: 1. Block the card immediately in the card system 2. File an incident report 3. Order a replacement card"},
	{"PIN Reset", "How does a customer reset a forgotten PIN?",
		"A forgotten PIN is reset at the branch. The customer signs the PIN reset request and receives the new PIN by post within five days."},
	{"Card Limits", "How do I raise the withdrawal ceiling on a card?",
		"The withdrawal ceiling can be raised up to 2000 euros per week after manager approval. Temporary raises expire after 30 days."},
	{"Mortgage Application", "Which papers are needed for a mortgage application?",
		"A mortgage application must include:\n- Last three payslips\n- Tax notice\n- Property sale agreement\n- Bank statements for six months"},
	{"Personal Loan", "What is the maximum repayment period for a personal loan?",
		"A personal loan can be repaid over at most 84 months. The debt ratio must stay below 35 percent of net income."},
	{"Overdraft", "How is an authorised overdraft set up?",
		"An authorised overdraft is set up by the account officer after reviewing six months of statements. The overdraft limit appears on the monthly statement."},
	{"International Transfer", "What information does a SWIFT transfer require?",
		"A SWIFT transfer requires the beneficiary IBAN, the BIC code, the beneficiary name and the purpose of payment."},
	{"Standing Order", "How do I create a standing order?",
		"Step 1: Open the standing order screen. Step 2: Enter amount, frequency and beneficiary. Step 3: Have the customer sign the mandate."},
	{"Cheque Deposit", "How long before a deposited cheque is credited?",
		"A deposited cheque is credited after two business days. Cheques above 5000 euros are verified by the back office first."},
	{"Cheque Book", "How can a customer order a chequebook?",
		"A chequebook is ordered from the customer file and delivered to the branch within seven days. The customer collects it with an ID card."},
	{"Cash Withdrawal", "What is the counter limit for a cash withdrawal without notice?",
		"Counter withdrawals above 3000 euros need 48 hours notice so the vault can prepare the banknotes."},
	{"Foreign Currency", "How do I order foreign banknotes for a customer?",
		"Foreign banknotes are ordered before noon for delivery the next day. The exchange rate is fixed on the delivery date."},
	{"Safe Deposit Box", "How does a customer rent a safe deposit box?",
		"Renting a safe deposit box requires a signed rental contract, an annual fee paid in advance and two registered key holders."},
	{"Power of Attorney", "How is a power of attorney registered on an account?",
		"A power of attorney is registered after both the holder and the proxy sign the mandate form in the presence of an agent."},
	{"Deceased Customer", "What happens to the accounts of a deceased customer?",
		"Accounts of a deceased customer are frozen once the death certificate is received. The notary handles the estate release."},
	{"Minor Account", "Can a minor open an account?",
		"A minor can open an account with a legal guardian who signs the opening form. The guardian controls withdrawals until majority."},
	{"Joint Account", "How do two people open a joint account?",
		"Both co-holders of a joint account present an ID card and sign the joint account agreement. Either co-holder can operate the account."},
	{"Address Change", "How do I update a customer's postal address?",
		"A postal address update needs a recent utility bill. The change is visible in the customer file the next morning."},
	{"Complaint Handling", "How should an agent log a customer complaint?",
		"Every customer complaint is logged in the complaints register within 24 hours and acknowledged in writing within 48 hours."},
	{"Fraud Alert", "What do I do with a suspected phishing email reported by a customer?",
		"A suspected phishing email is forwarded to the security team at security@bank.example without opening any attachment."},
	{"Anti Money Laundering", "When must a suspicious transaction be declared?",
		"A suspicious transaction must be declared to the compliance officer the same day. Do not inform the customer about the declaration."},
	{"Know Your Customer", "How often is KYC information refreshed?",
		"KYC information is refreshed every two years for standard customers and every year for high risk customers."},
	{"Term Deposit", "What penalty applies to an early term deposit withdrawal?",
		"An early term deposit withdrawal loses half of the accrued interest. The principal is never reduced."},
	{"Insurance", "How is borrower insurance subscribed?",
		"Borrower insurance is subscribed with a health questionnaire. The insurer answers within ten days."},
	{"Online Banking", "How do I activate online banking access?",
		"Online banking access is activated by sending an activation code by SMS. The code expires after fifteen minutes."},
	{"Mobile App", "What should a customer do if the mobile app is locked?",
		"A locked mobile app is unlocked by the helpdesk after identity verification. Contact the helpdesk on 0800 555 010."},
	{"Direct Debit", "How can a customer dispute a direct debit?",
		"A customer can dispute a direct debit within eight weeks for an authorised payment and thirteen months for an unauthorised one."},
	{"Payroll Service", "How does a company enrol in the payroll service?",
		"Companies enrol in the payroll service by signing the payroll agreement and uploading the salary file before the 25th of each month."},
	{"Merchant Terminal", "How does a shop request a payment terminal?",
		"A shop requests a payment terminal through the merchant desk. Installation happens within ten business days."},
	{"Student Loan", "Is a guarantor needed for a student loan?",
		"A student loan needs a parent or guarantor except when the state guarantee scheme applies."},
	{"Car Loan", "What down payment is required for a car loan?",
		"A car loan requires a down payment of at least ten percent of the vehicle price."},
	{"Credit Card", "How is a gold credit card requested?",
		"A gold credit card is requested with proof of income above 3000 euros per month. Approval takes three days."},
	{"Branch Opening Hours", "What are the branch opening hours on Saturday?",
		"Branches open on Saturday from 9:00 to 12:30. Weekday hours are 8:30 to 17:00."},
	{"Vault Procedure", "Who can open the vault in the morning?",
		"The vault opens in the morning only with two authorised officers present. Each officer holds one half of the combination."},
	{"Counterfeit Banknote", "What do I do with a counterfeit banknote?",
		"A counterfeit banknote is retained and a receipt is given to the customer. The note is sent to the central bank within 24 hours."},
	{"Customer Data Request", "How do we answer a customer data access request?",
		"A data access request is answered within one month. Forward it to the data protection officer at dpo@bank.example."},
	{"Account Statement", "How can a customer obtain an old account statement?",
		"Statements older than one year are ordered from the archive service. A fee of 5 euros applies per statement."},
}

// BuildCorpus returns the procedure corpus and one question per document.
func BuildCorpus() *Corpus {
	docs := make([]ProcedureDocument, 0, len(topics))
	cases := make([]QuestionTestCase, 0, len(topics))
	for i, t := range topics {
		name := fmt.Sprintf("%02d-%s", i+1, slug(t.title))
		docs = append(docs, ProcedureDocument{Name: name, Title: t.title, Content: t.content})
		cases = append(cases, QuestionTestCase{
			Question:    t.question,
			ExpectedDoc: name,
			Description: fmt.Sprintf("question about %s cites %s", strings.ToLower(t.title), name),
		})
	}
	return &Corpus{
		Documents:      docs,
		TestCases:      cases,
		TotalDocs:      len(docs),
		TotalQuestions: len(cases),
	}
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

func slug(s string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(s), "-"), "-")
}

// FileText is the text written to disk for d: title line, blank line, content.
func (d ProcedureDocument) FileText() string {
	return d.Title + "\n\n" + d.Content
}
