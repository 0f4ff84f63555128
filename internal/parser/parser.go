package parser

import "boxrun/internal/domain"

// Parser extracts failure records from a status tree
type Parser interface {
	ParseFailures(snap domain.ProjectSnapshot) []domain.Failure
}
