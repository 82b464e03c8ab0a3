// Package deploy exports model nodes to downstream systems:
// the definition repository, the code-list store, the label store and the semantic triple store.
//
// Deployment has two phases. Validator checks candidates against the downstream
// without changing anything, and Deployer exports them, rolling back what it has
// written when a step fails.
package deploy

import (
	"context"

	"github.com/opst/modelfab/pkg/domain/report"
)

// DefinitionImporter is the definition repository.
type DefinitionImporter interface {
	// Validate checks the definition XML without importing.
	//
	// Problems of the definition are returned as messages.
	// Errors are for failures of the importer itself.
	Validate(ctx context.Context, id string, xml []byte) ([]report.Message, error)

	// Import creates or replaces the definition.
	Import(ctx context.Context, id string, xml []byte) error

	Remove(ctx context.Context, id string) error
}

// CodeValue is a value of a code-list.
type CodeValue struct {
	CodeList     int               `json:"codeList"`
	Value        string            `json:"value"`
	Descriptions map[string]string `json:"descriptions,omitempty"`
	DefinedIn    string            `json:"definedIn"`
}

type CodeListValidator interface {
	// ValidateCodeValue returns an error when the value is not acceptable for the code-list.
	ValidateCodeValue(ctx context.Context, value CodeValue) error
}

type CodeListPersister interface {
	Persist(ctx context.Context, value CodeValue) error
	Remove(ctx context.Context, value CodeValue) error
}

// Triple is a statement of the semantic repository.
type Triple struct {
	Subject   string `json:"subject"`
	Predicate string `json:"predicate"`
	Object    string `json:"object"`

	// Literal tells Object is a literal, not a resource.
	Literal bool `json:"literal,omitempty"`

	// Lang is the language tag of a literal.
	Lang string `json:"lang,omitempty"`
}

type SemanticRepository interface {
	// Save replaces all statements about the node with triples.
	Save(ctx context.Context, nodeId string, triples []Triple) error

	// Remove removes all statements about the node.
	Remove(ctx context.Context, nodeId string) error
}

// LabelDefinition is a set of texts per language.
type LabelDefinition struct {
	Id        string            `json:"id"`
	Labels    map[string]string `json:"labels"`
	DefinedIn []string          `json:"definedIn"`
}

type LabelService interface {
	// Save creates or replaces the label definition.
	Save(ctx context.Context, label LabelDefinition) error
	Remove(ctx context.Context, labelId string) error
}
