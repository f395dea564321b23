package enum

// ── State machines (CHECK constrained in DB) ──

// Order statuses live in internal/status together with the transition graph.

const (
	PixKeyTypeCPF    = "cpf"
	PixKeyTypeCNPJ   = "cnpj"
	PixKeyTypeEmail  = "email"
	PixKeyTypePhone  = "phone"
	PixKeyTypeRandom = "random"
)

// IsValidPixKeyType reports whether t is one of the accepted PIX key kinds.
func IsValidPixKeyType(t string) bool {
	switch t {
	case PixKeyTypeCPF, PixKeyTypeCNPJ, PixKeyTypeEmail, PixKeyTypePhone, PixKeyTypeRandom:
		return true
	}
	return false
}

// ── Roles (CHECK constrained in DB) ──

const (
	UserRoleAdmin   = "ADMIN"
	UserRoleStaff   = "STAFF"
	UserRoleKitchen = "KITCHEN"
)

// ── External gateway vocabulary (not DB constrained) ──

// Evolution API event for inbound messages. The gateway has emitted both
// spellings across versions.
const (
	EventMessagesUpsert    = "MESSAGES_UPSERT"
	EventMessagesUpsertAlt = "messages.upsert"
)

// Mercado Pago webhook action and payment status we act on.
const (
	PaymentActionUpdated  = "payment.updated"
	PaymentStatusApproved = "approved"
)
