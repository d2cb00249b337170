// Package wizard is the multi-step application engine: it owns one draft,
// sequences the steps, gates navigation on validation, keeps the derived
// scores consistent and persists through a store.Gateway.
package wizard

import (
	"context"
	stderrors "errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"grant-intake/internal/common/errors"
	"grant-intake/internal/common/logger"
	"grant-intake/internal/common/metrics"
	"grant-intake/internal/models"
	"grant-intake/internal/store"
	"grant-intake/internal/wizard/registry"
	"grant-intake/internal/wizard/scoring"
	"grant-intake/internal/wizard/validation"

	jsonschema "grant-intake/internal/common/validation"

	"github.com/google/uuid"
)

// Options configures a Machine.
type Options struct {
	Registry       *registry.Registry
	Gateway        store.Gateway
	Logger         logger.Logger
	Debounce       time.Duration
	GatewayTimeout time.Duration
	Listeners      []SubmissionListener
	Now            func() time.Time
}

// Machine is the sole mutator of one ApplicationDraft. All operations are
// serialized; autosave runs in the background and never takes the machine
// lock.
type Machine struct {
	mu sync.Mutex

	reg       *registry.Registry
	gateway   store.Gateway
	logger    logger.Logger
	timeout   time.Duration
	listeners []SubmissionListener
	now       func() time.Time
	autosave  *Autosaver

	draft       *models.ApplicationDraft
	state       State
	fieldErrors validation.FieldErrors
	revision    int64
	savedRev    int64
	closed      bool
}

func defaultNow() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func newMachine(opts Options, draft *models.ApplicationDraft) (*Machine, error) {
	if opts.Gateway == nil {
		return nil, fmt.Errorf("wizard: gateway is required")
	}
	if opts.Registry == nil {
		opts.Registry = registry.Default()
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNoOpLogger()
	}
	if opts.Now == nil {
		opts.Now = defaultNow
	}

	log := opts.Logger.WithFields(map[string]interface{}{"draftId": draft.ID})
	m := &Machine{
		reg:         opts.Registry,
		gateway:     opts.Gateway,
		logger:      log,
		timeout:     opts.GatewayTimeout,
		listeners:   opts.Listeners,
		now:         opts.Now,
		autosave:    NewAutosaver(opts.Gateway, log, opts.Debounce, opts.GatewayTimeout, opts.Now),
		draft:       draft,
		fieldErrors: validation.FieldErrors{},
	}
	m.state = m.restState()
	return m, nil
}

// New starts a fresh draft at Editing(1).
func New(opts Options) (*Machine, error) {
	now := opts.Now
	if now == nil {
		now = defaultNow
	}
	id := uuid.New().String()
	ts := now()
	return newMachine(opts, &models.ApplicationDraft{
		ID:          id,
		Slug:        Slug("", id),
		Answers:     map[models.FieldKey]models.Value{},
		CurrentStep: 1,
		Status:      models.StatusDraft,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	})
}

// Resume loads draft id from the gateway. A submitted draft resumes in the
// Submitted state and stays read-only.
func Resume(ctx context.Context, opts Options, id string) (*Machine, error) {
	if opts.Gateway == nil {
		return nil, fmt.Errorf("wizard: gateway is required")
	}
	if opts.GatewayTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.GatewayTimeout)
		defer cancel()
	}

	draft, err := opts.Gateway.Load(ctx, id)
	if stderrors.Is(err, store.ErrNotFound) || (err == nil && draft == nil) {
		return nil, errors.NewDraftNotFoundError(id)
	}
	if err != nil {
		return nil, errors.NewPersistenceFailureError("load", err)
	}
	if draft.Answers == nil {
		draft.Answers = map[models.FieldKey]models.Value{}
	}

	m, err := newMachine(opts, draft)
	if err != nil {
		return nil, err
	}
	if draft.CurrentStep < 1 || draft.CurrentStep > m.reg.Len() {
		return nil, errors.NewOutOfRangeStepError(draft.CurrentStep, m.reg.Len())
	}
	m.logger.Debug("draft resumed", map[string]interface{}{
		"currentStep":    draft.CurrentStep,
		"completedSteps": []int(draft.CompletedSteps),
		"status":         draft.Status,
	})
	return m, nil
}

func (m *Machine) restState() State {
	if m.draft.Status == models.StatusSubmitted {
		return Submitted
	}
	return Editing(m.draft.CurrentStep)
}

// SetField records value under key and, when key feeds the scoring
// calculator, recomputes the derived scores in the same critical section.
// No validation runs here.
func (m *Machine) SetField(key models.FieldKey, value models.Value) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return errors.NewSessionClosedError(m.draft.ID)
	}
	if m.draft.Status == models.StatusSubmitted {
		return errors.NewDraftSubmittedError(m.draft.ID)
	}
	step := m.reg.StepOf(key)
	if step == 0 {
		return errors.NewUnknownFieldError(string(key))
	}
	if value.Kind == "" {
		return errors.NewInvalidInputError(fmt.Sprintf("value for %s has no kind", key))
	}

	m.draft.Answers[key] = value
	if scoring.IsDependency(key) {
		m.draft.DerivedScores = scoring.Calculate(m.draft.Answers)
	}
	if key == registry.OrganizationName {
		m.draft.Slug = Slug(value.String(), m.draft.ID)
	}
	delete(m.fieldErrors, key)

	if m.draft.CompletedSteps.Has(step) {
		m.logger.Debug("editing field of completed step", map[string]interface{}{
			"field": key,
			"step":  step,
		})
	}
	metrics.FieldUpdates.WithLabelValues(strconv.Itoa(step)).Inc()
	m.touch()
	return nil
}

// ClearField marks key as explicitly cleared, which differs from a field
// that was never visited.
func (m *Machine) ClearField(key models.FieldKey) error {
	return m.SetField(key, models.Empty())
}

// GoToStep moves to Editing(target). Skipping ahead is only allowed when
// every step in between that declares required fields has been completed.
func (m *Machine) GoToStep(target int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return errors.NewSessionClosedError(m.draft.ID)
	}
	if m.draft.Status == models.StatusSubmitted {
		return errors.NewDraftSubmittedError(m.draft.ID)
	}
	if err := m.checkRange(target); err != nil {
		return err
	}
	return m.advance(target)
}

// advance moves towards target, where Len()+1 stands for the review state.
func (m *Machine) advance(target int) error {
	if blocking := m.blockingSteps(target); len(blocking) > 0 {
		return errors.NewStepNotReadyError(target, blocking)
	}

	next := Editing(target)
	if target > m.reg.Len() {
		target = m.reg.Len()
		next = Review
	}
	m.state = next
	if m.draft.CurrentStep != target {
		m.draft.CurrentStep = target
		m.touch()
	}
	return nil
}

func (m *Machine) blockingSteps(target int) []int {
	var blocking []int
	for s := m.draft.CurrentStep + 1; s < target; s++ {
		desc, ok := m.reg.Step(s)
		if !ok {
			continue
		}
		if desc.HasRequired() && !m.draft.CompletedSteps.Has(s) {
			blocking = append(blocking, s)
		}
	}
	return blocking
}

func (m *Machine) checkRange(step int) error {
	if step < 1 || step > m.reg.Len() {
		return errors.NewOutOfRangeStepError(step, m.reg.Len())
	}
	return nil
}

// ValidateStep runs the ruleset over every field of step and returns the
// failures keyed by field; an empty result is a pass and marks the step
// completed. Answers are never modified.
func (m *Machine) ValidateStep(step int) (validation.FieldErrors, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, errors.NewSessionClosedError(m.draft.ID)
	}
	if m.draft.Status == models.StatusSubmitted {
		return nil, errors.NewDraftSubmittedError(m.draft.ID)
	}
	if err := m.checkRange(step); err != nil {
		return nil, err
	}
	return m.validate(step), nil
}

func (m *Machine) validate(step int) validation.FieldErrors {
	prev := m.state
	m.state = Validating(step)
	defer func() { m.state = prev }()

	desc, _ := m.reg.Step(step)
	errs := validation.Validate(desc.ValidationFields(), m.draft.Answers)

	for _, f := range desc.Fields {
		delete(m.fieldErrors, f.Key)
	}
	for k, fe := range errs {
		m.fieldErrors[k] = fe
	}

	if len(errs) == 0 && !m.draft.CompletedSteps.Has(step) {
		m.draft.CompletedSteps = m.draft.CompletedSteps.Add(step)
		m.touch()
	}
	return errs
}

// SubmitStep validates step and, on pass, advances to step+1, or to Review
// after the last step. A failed validation leaves the state unchanged.
func (m *Machine) SubmitStep(step int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return errors.NewSessionClosedError(m.draft.ID)
	}
	if m.draft.Status == models.StatusSubmitted {
		return errors.NewDraftSubmittedError(m.draft.ID)
	}
	if err := m.checkRange(step); err != nil {
		return err
	}

	label := strconv.Itoa(step)
	if errs := m.validate(step); len(errs) > 0 {
		metrics.StepSubmissions.WithLabelValues(label, "failed").Inc()
		m.logger.Debug("step validation failed", map[string]interface{}{
			"step":   step,
			"fields": len(errs),
		})
		return errors.NewValidationFailedError(step, errs.Messages())
	}
	metrics.StepSubmissions.WithLabelValues(label, "passed").Inc()
	return m.advance(step + 1)
}

func (m *Machine) missingSteps() []int {
	var missing []int
	for s := 1; s <= m.reg.Len(); s++ {
		if !m.draft.CompletedSteps.Has(s) {
			missing = append(missing, s)
		}
	}
	return missing
}

// SubmitApplication freezes the answers and hands the submitted draft to
// the gateway. It holds the machine lock across the wait for any in-flight
// autosave and the final write, so the stored record is the frozen
// snapshot. Status only flips after the gateway accepts the write.
func (m *Machine) SubmitApplication(ctx context.Context) (models.SubmissionDocument, error) {
	m.mu.Lock()

	if m.closed {
		m.mu.Unlock()
		return models.SubmissionDocument{}, errors.NewSessionClosedError(m.draft.ID)
	}
	if m.draft.Status == models.StatusSubmitted {
		m.mu.Unlock()
		return models.SubmissionDocument{}, errors.NewDraftSubmittedError(m.draft.ID)
	}
	if missing := m.missingSteps(); len(missing) > 0 {
		m.mu.Unlock()
		metrics.ApplicationSubmissions.WithLabelValues("incomplete").Inc()
		return models.SubmissionDocument{}, errors.NewIncompleteApplicationError(missing)
	}

	m.autosave.Quiesce()
	m.syncSaved()

	now := m.now()
	frozen := m.draft.Clone()
	frozen.Status = models.StatusSubmitted
	frozen.UpdatedAt = now
	submittedAt, savedAt := now, now
	frozen.SubmittedAt = &submittedAt
	frozen.LastSavedAt = &savedAt

	doc := m.submissionDocument(frozen, now)
	if err := m.checkDocument(doc); err != nil {
		m.rescheduleLocked()
		m.mu.Unlock()
		metrics.ApplicationSubmissions.WithLabelValues("schema_violation").Inc()
		return models.SubmissionDocument{}, err
	}

	gctx, cancel := m.gatewayContext(ctx)
	err := m.gateway.Save(gctx, frozen.ID, frozen)
	cancel()
	if err != nil {
		m.rescheduleLocked()
		m.mu.Unlock()
		metrics.ApplicationSubmissions.WithLabelValues("persistence_failure").Inc()
		m.logger.Error("submission save failed", map[string]interface{}{"error": err})
		return models.SubmissionDocument{}, errors.NewPersistenceFailureError("save", err)
	}

	m.draft = frozen
	m.revision++
	m.savedRev = m.revision
	m.state = Submitted
	m.fieldErrors = validation.FieldErrors{}
	listeners := m.listeners
	m.mu.Unlock()

	metrics.ApplicationSubmissions.WithLabelValues("submitted").Inc()
	metrics.SubmissionScore.Observe(float64(doc.Scores.TotalScore))
	m.logger.Info("application submitted", map[string]interface{}{
		"slug":       doc.Slug,
		"totalScore": doc.Scores.TotalScore,
	})

	for _, l := range listeners {
		if err := l.ApplicationSubmitted(ctx, doc); err != nil {
			m.logger.Warn("submission listener failed", map[string]interface{}{
				"listener": l.Name(),
				"error":    err,
			})
		}
	}
	return doc, nil
}

// submissionDocument flattens the frozen answers, normalizing numeric text
// and boolean text to JSON numbers and booleans by the declared field type.
func (m *Machine) submissionDocument(frozen *models.ApplicationDraft, at time.Time) models.SubmissionDocument {
	doc := models.NewSubmissionDocument(frozen, at)
	for key, v := range frozen.Answers {
		f, ok := m.reg.Field(key)
		if !ok || v.IsBlank() {
			continue
		}
		switch f.Type {
		case models.KindNumber:
			if n, ok := validation.ParseNumber(v); ok {
				doc.Answers[string(key)] = n
			}
		case models.KindBoolean:
			if b, ok := validation.ParseBool(v); ok {
				doc.Answers[string(key)] = b
			}
		}
	}
	return doc
}

func (m *Machine) checkDocument(doc models.SubmissionDocument) error {
	res, err := jsonschema.ValidateDocument(m.reg.SubmissionSchema(), doc.Variables())
	if err != nil {
		return errors.NewSchemaViolationError([]string{err.Error()})
	}
	if !res.Valid {
		m.logger.Warn("submission document rejected by schema", map[string]interface{}{
			"violations": res.GetErrorMessages(),
		})
		return errors.NewSchemaViolationError(res.GetErrorMessages())
	}
	return nil
}

// Save writes the current draft through the gateway right away. A
// submitted draft has nothing left to save.
func (m *Machine) Save(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return errors.NewSessionClosedError(m.draft.ID)
	}
	if m.draft.Status == models.StatusSubmitted {
		return nil
	}
	m.autosave.Quiesce()
	m.syncSaved()

	now := m.now()
	snap := m.draft.Clone()
	snap.LastSavedAt = &now

	gctx, cancel := m.gatewayContext(ctx)
	defer cancel()
	if err := m.gateway.Save(gctx, snap.ID, snap); err != nil {
		m.rescheduleLocked()
		return errors.NewPersistenceFailureError("save", err)
	}

	m.draft.LastSavedAt = &now
	m.savedRev = m.revision
	return nil
}

// Close flushes any pending autosave. Every mutation after Close fails with
// SESSION_CLOSED; reads keep working.
func (m *Machine) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return m.autosave.Close()
}

func (m *Machine) gatewayContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.timeout > 0 {
		return context.WithTimeout(ctx, m.timeout)
	}
	return context.WithCancel(ctx)
}

// touch bumps the revision, stamps the update time and queues an autosave
// of the current draft.
func (m *Machine) touch() {
	m.revision++
	m.draft.UpdatedAt = m.now()
	m.autosave.Schedule(m.draft.Clone(), m.revision)
}

// rescheduleLocked re-queues the current draft after a dropped autosave,
// if it still has unsaved changes.
func (m *Machine) rescheduleLocked() {
	if m.revision > m.savedRev {
		m.autosave.Schedule(m.draft.Clone(), m.revision)
	}
}

// syncSaved pulls the newest autosave result into the draft.
func (m *Machine) syncSaved() {
	rev, at := m.autosave.Saved()
	if rev > m.savedRev {
		m.savedRev = rev
		m.draft.LastSavedAt = at
	}
}

// ID returns the immutable draft id.
func (m *Machine) ID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.draft.ID
}

// Draft returns a deep copy of the current draft.
func (m *Machine) Draft() *models.ApplicationDraft {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncSaved()
	return m.draft.Clone()
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Dirty reports whether the draft has changes no save has persisted yet.
func (m *Machine) Dirty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncSaved()
	return m.revision > m.savedRev
}

// FieldErrors returns the errors of the most recent validation of each
// step, minus fields edited since.
func (m *Machine) FieldErrors() validation.FieldErrors {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(validation.FieldErrors, len(m.fieldErrors))
	for k, v := range m.fieldErrors {
		out[k] = v
	}
	return out
}

// LastAutosaveError is the error of the most recent background save, nil
// once one succeeds.
func (m *Machine) LastAutosaveError() error {
	return m.autosave.Err()
}

func (m *Machine) Registry() *registry.Registry {
	return m.reg
}
