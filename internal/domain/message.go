package domain

// Roles de mensaje: intencion detectada por el clasificador.
const (
	RoleIncident   = "incident"
	RoleDiscussion = "discussion"
	RoleResolution = "resolution"
)

// Categorias de ingenieria reconocidas por el clasificador.
const (
	CategoryDatabase   = "database"
	CategoryCache      = "cache"
	CategoryAuth       = "auth"
	CategoryNetwork    = "network"
	CategorySecurity   = "security"
	CategoryDeployment = "deployment"
	CategoryOther      = "other"
)

// Severidades posibles de un mensaje/incidente.
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// Message es una unidad de chat ya clasificada y (opcionalmente) ligada a un issue.
// Los campos de clasificacion se asignan una sola vez al ingerir; nunca se reclasifica.
type Message struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
	SenderID       string `json:"sender_id"`
	TimestampMS    int64  `json:"time_stamp"`
	Text           string `json:"message_text"`
	Role           string `json:"role"`
	Category       string `json:"category"`
	Severity       string `json:"severity"`
	IssueID        string `json:"issue_id,omitempty"`
}

// Classification es la salida estructurada del clasificador.
type Classification struct {
	Role     string `json:"role"`
	Category string `json:"category"`
	Severity string `json:"severity"`
}

// DefaultClassification es la tupla segura cuando el clasificador falla.
func DefaultClassification() Classification {
	return Classification{
		Role:     RoleDiscussion,
		Category: CategoryOther,
		Severity: SeverityLow,
	}
}

// ValidRole indica si role pertenece al conjunto cerrado.
func ValidRole(role string) bool {
	switch role {
	case RoleIncident, RoleDiscussion, RoleResolution:
		return true
	}
	return false
}

// ValidCategory indica si category pertenece al conjunto cerrado.
func ValidCategory(category string) bool {
	switch category {
	case CategoryDatabase, CategoryCache, CategoryAuth, CategoryNetwork,
		CategorySecurity, CategoryDeployment, CategoryOther:
		return true
	}
	return false
}

// ValidSeverity indica si severity pertenece al conjunto cerrado.
func ValidSeverity(severity string) bool {
	switch severity {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return true
	}
	return false
}
