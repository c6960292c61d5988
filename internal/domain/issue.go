package domain

// Estados del ciclo de vida de un issue. Open -> Resolved, nunca al reves.
const (
	IssueStatusOpen     = "Open"
	IssueStatusResolved = "Resolved"
)

// Issue es un incidente rastreado desde el primer reporte hasta su resolucion.
type Issue struct {
	IssueID           string `json:"issue_id"`
	Title             string `json:"title"`
	Source            string `json:"source"`
	Category          string `json:"category"`
	Severity          string `json:"severity"`
	Status            string `json:"status"`
	OpenedAt          int64  `json:"opened_at"`
	ResolvedAt        int64  `json:"resolved_at"` // 0 mientras este abierto
	ResolutionSummary string `json:"resolution_summary,omitempty"`
}

// IsOpen indica si el issue sigue abierto.
func (i *Issue) IsOpen() bool {
	return i.Status == IssueStatusOpen
}
