// Package notify implements the Notification Dispatcher (C12): it loads
// the documents a run produced, resolves which profiles/templates/
// recipients are active for that run's pipeline, builds one send plan
// per scope, renders each plan's template, and sends it over a
// Transport — recording enough to make the whole dispatch idempotent
// across retried invocations.
//
// Grounded on the teacher's internal/app/scheduler/notifier.go struct
// family (LarkNotifier/MoltbookNotifier/NopNotifier: client+logger
// fields, a narrow Send-style interface, a Nop variant for disabled or
// test runs) generalized from chat/post delivery to templated email.
package notify

// Scope says whether a notification profile fires once for the whole
// run (global) or once per store that produced documents (per_store).
type Scope string

const (
	ScopeGlobal   Scope = "global"
	ScopePerStore Scope = "per_store"
)

// AttachMode gates whether (and which) documents a plan must resolve
// before it is eligible to send.
type AttachMode string

const (
	AttachNone        AttachMode = "none"
	AttachPerStorePDF AttachMode = "per_store_pdf"
)

// Profile is one configured notification target: a pipeline, a scope,
// and an attach-mode, bound to zero or more templates and recipients.
type Profile struct {
	ID           int64
	PipelineName string
	Scope        Scope
	AttachMode   AttachMode
	IsActive     bool
}

// Template holds the subject/body text a profile renders, with
// {{var}}-style placeholders resolved by RenderTemplate.
type Template struct {
	ID        int64
	ProfileID int64
	Subject   string
	Body      string
	IsActive  bool
}

// Recipient is one address a profile sends to, optionally scoped to a
// single store (per_store profiles) and environment.
type Recipient struct {
	ID        int64
	ProfileID int64
	StoreCode string // empty for a global-scope recipient
	Env       string
	Email     string
	IsActive  bool
}

// Document is a recorded artifact produced elsewhere in the run
// (downloaded report, generated PDF) and consumed here as a candidate
// attachment.
type Document struct {
	ID         int64
	RunID      string
	StoreCode  string
	Kind       string
	Subtype    string
	Path       string
	FileName   string
	RecordedAt string
}

// Attachment is one file resolved onto an outgoing message.
type Attachment struct {
	Filename string
	Path     string
}

// Plan is one fully-resolved send: a recipient list, a rendered
// subject/body, and the attachments its attach-mode demanded.
type Plan struct {
	ProfileID   int64
	Scope       Scope
	StoreCode   string // empty for a global-scope plan
	To          []string
	Subject     string
	Body        string
	Attachments []Attachment
}
