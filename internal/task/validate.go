package task

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"unicode"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/nibzard/mdtasks/internal/utils"
)

//go:embed task.schema.json
var schemaJSON []byte

const schemaURL = "task.schema.json"

// Field formats shared with the codec and the conflict detector.
var (
	DatePattern     = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	TimePattern     = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)
	DurationPattern = regexp.MustCompile(`^\d+:[0-5]\d$`)
)

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func taskSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.AssertFormat = true
		if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = fmt.Errorf("add task schema: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile(schemaURL)
	})
	return compiledSchema, schemaErr
}

// ValidationError represents a validation error with context.
type ValidationError struct {
	Path string // field name of the failing value
	Err  error  // Underlying error
}

func (e *ValidationError) Error() string {
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Result contains validation results for one task.
type Result struct {
	Valid      bool
	Errors     []error
	Warnings   []string
	UsedSchema bool // true if JSON Schema validation was performed
}

// Messages returns the error messages in field order.
func (r *Result) Messages() []string {
	out := make([]string, 0, len(r.Errors))
	for _, err := range r.Errors {
		out = append(out, err.Error())
	}
	return out
}

// fieldOrder fixes the order errors are reported in, regardless of the
// order the schema validator walks properties.
var fieldOrder = []string{"name", "date", "time", "duration", "tags", "priority", "link"}

// Validate checks every field rule of t.
func Validate(t Task) *Result {
	result := &Result{
		Valid:    true,
		Errors:   make([]error, 0),
		Warnings: make([]string, 0),
	}

	if schema, err := taskSchema(); err == nil {
		result.UsedSchema = true
		validateWithSchema(schema, t, result)
	} else {
		result.Warnings = append(result.Warnings, fmt.Sprintf("JSON Schema validation not available, using minimal checks: %v", err))
		validateMinimal(t, result)
	}

	if t.Time != "" && t.Date == "" {
		result.Warnings = append(result.Warnings, "time is set without a date")
	}
	if t.Duration != "" && t.Time == "" {
		result.Warnings = append(result.Warnings, "duration is set without a time")
	}

	result.Valid = len(result.Errors) == 0
	return result
}

// ValidateField checks a single field value using the same rules as Validate.
// It is used by edit flows before a value is applied to a task.
func ValidateField(field, value string) error {
	var t Task
	t.Name = "x"
	switch field {
	case "name":
		t.Name = value
	case "date":
		t.Date = value
	case "time":
		t.Time = value
	case "duration":
		t.Duration = value
	case "priority":
		t.Priority = Priority(value)
	case "link":
		t.Link = value
	case "tags", "description", "log":
		return nil
	default:
		return fmt.Errorf("unknown field %q", field)
	}
	result := Validate(t)
	if len(result.Errors) > 0 {
		return result.Errors[0]
	}
	return nil
}

func validateWithSchema(schema *jsonschema.Schema, t Task, result *Result) {
	if t.Tags == nil {
		t.Tags = []string{}
	}
	data, err := json.Marshal(t)
	if err != nil {
		result.Errors = append(result.Errors, &ValidationError{Err: fmt.Errorf("failed to marshal task for validation: %w", err)})
		return
	}
	var instance interface{}
	if err := json.Unmarshal(data, &instance); err != nil {
		result.Errors = append(result.Errors, &ValidationError{Err: fmt.Errorf("failed to unmarshal task for validation: %w", err)})
		return
	}

	err = schema.Validate(instance)
	if err == nil {
		return
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		result.Errors = append(result.Errors, err)
		return
	}

	failed := make(map[string]bool)
	collectSchemaFields(ve, failed)
	for _, field := range fieldOrder {
		if failed[field] {
			result.Errors = append(result.Errors, fieldError(field, t))
		}
	}
}

// collectSchemaFields records the top-level field of every leaf violation.
func collectSchemaFields(err *jsonschema.ValidationError, failed map[string]bool) {
	if len(err.Causes) == 0 {
		path := utils.JSONPointerToPath(err.InstanceLocation)
		field, _, _ := strings.Cut(path, "[")
		field, _, _ = strings.Cut(field, ".")
		if field != "" {
			failed[field] = true
		}
		return
	}
	for _, cause := range err.Causes {
		collectSchemaFields(cause, failed)
	}
}

// tagsAreWords reports whether every tag is a single non-empty word.
func tagsAreWords(tags []string) bool {
	for _, tag := range tags {
		if tag == "" || strings.ContainsFunc(tag, unicode.IsSpace) {
			return false
		}
	}
	return true
}

// validateMinimal applies the field rules without JSON Schema.
func validateMinimal(t Task, result *Result) {
	failed := map[string]bool{
		"name":     strings.TrimSpace(t.Name) == "",
		"date":     t.Date != "" && !DatePattern.MatchString(t.Date),
		"time":     t.Time != "" && !TimePattern.MatchString(t.Time),
		"duration": t.Duration != "" && !DurationPattern.MatchString(t.Duration),
		"tags":     !tagsAreWords(t.Tags),
		"priority": t.Priority != "" && !t.Priority.Valid(),
		"link":     t.Link != "" && !isAbsoluteURL(t.Link),
	}
	for _, field := range fieldOrder {
		if failed[field] {
			result.Errors = append(result.Errors, fieldError(field, t))
		}
	}
}

func isAbsoluteURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.IsAbs()
}

func fieldError(field string, t Task) *ValidationError {
	var err error
	switch field {
	case "name":
		err = errors.New("Task name cannot be empty")
	case "date":
		err = fmt.Errorf("Invalid date format: %q. Expected YYYY-MM-DD", t.Date)
	case "time":
		err = fmt.Errorf("Invalid time format: %q. Expected HH:MM", t.Time)
	case "duration":
		err = fmt.Errorf("Invalid duration format: %q. Expected HH:MM", t.Duration)
	case "tags":
		err = errors.New("Tags must be an array of strings")
	case "priority":
		err = fmt.Errorf("Invalid priority: %q", string(t.Priority))
	case "link":
		err = fmt.Errorf("Invalid link format: %q", t.Link)
	default:
		err = fmt.Errorf("invalid %s", field)
	}
	return &ValidationError{Path: field, Err: err}
}

// TaskErrors lists the validation errors of one task.
type TaskErrors struct {
	Index  int
	Name   string
	Errors []error
}

// ValidationErrors aggregates the failures of several tasks.
type ValidationErrors struct {
	Tasks []TaskErrors
}

func (e *ValidationErrors) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "cannot save tasks: %d invalid", len(e.Tasks))
	if len(e.Tasks) == 1 {
		b.WriteString(" task")
	} else {
		b.WriteString(" tasks")
	}
	for _, te := range e.Tasks {
		msgs := make([]string, 0, len(te.Errors))
		for _, err := range te.Errors {
			msgs = append(msgs, err.Error())
		}
		fmt.Fprintf(&b, "; task %d %q: %s", te.Index, te.Name, strings.Join(msgs, ", "))
	}
	return b.String()
}

// ValidateAll validates tasks and returns a *ValidationErrors naming every
// failing task, or nil when all tasks are valid.
func ValidateAll(tasks []Task) error {
	var agg ValidationErrors
	for i, t := range tasks {
		result := Validate(t)
		if result.Valid {
			continue
		}
		agg.Tasks = append(agg.Tasks, TaskErrors{Index: i, Name: t.Name, Errors: result.Errors})
	}
	if len(agg.Tasks) == 0 {
		return nil
	}
	return &agg
}
