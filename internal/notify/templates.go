package notify

// Mail bodies. Every template receives the data map passed to Notify;
// the amount function formats decimals in the configured currency.
var templates = map[string]string{
	"payee_credit": `Hello,

your wallet has been credited with {{amount .Amount}} for order #{{.OrderID}}.
Payment reference: {{.Reference}}.

A payout to your bank account has been scheduled.
`,
	"payee_payout_succeeded": `Hello,

a payout of {{amount .Amount}} has been transferred to your bank account.
Reference: {{.Reference}}.
`,
	"payee_payout_failed": `Hello,

a payout of {{amount .Amount}} to your bank account failed.
Provider message: {{.Message}} ({{.Code}}).

The funds remain in your wallet. Support has been informed.
`,
	"admin_payin_failed": `A pay-in failed.

Pay-in: {{.PayinID}}
Provider message: {{.Message}} ({{.Code}})
`,
	"admin_payin_mismatch": `A pay-in webhook did not match the provider's records.

Pay-in: {{.PayinID}}
Provider status: {{.Status}}

No settlement was performed.
`,
	"admin_payment_error": `A settlement precondition failed.

Pay-in: {{.PayinID}}
Detail: {{.Detail}}
`,
	"admin_order_failed": `Settling order #{{.OrderID}} was aborted.

Detail: {{.Detail}}
{{- if .DocumentID}}
Document: {{.DocumentID}}
{{- end}}
{{- if .Code}}
Provider code: {{.Code}}
{{- end}}

Already settled documents remain paid; the provider's redelivery will
retry the rest.
`,
	"admin_unapplied_funds": `A payer has unapplied funds after settlement.

Pay-in: {{.PayinID}}
Wallet: {{.Wallet}}
Remaining balance: {{amount .Balance}}

No order claims this money. Manual review required.
`,
	"admin_payout_unresolved": `A payout event could not be matched to a payee.

Payout: {{.PayoutID}}
Debited wallet: {{.Wallet}}
`,
	"admin_kyc": `A KYC status change was reported.

Event: {{.Event}}
Resource: {{.ResourceID}}
`,
}
