package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"grant-intake/internal/common/errors"
	"grant-intake/internal/models"
	"grant-intake/internal/wizard"
	"grant-intake/internal/wizard/registry"
	"grant-intake/internal/wizard/validation"

	"github.com/go-chi/chi/v5"
)

// draftView is the response body of every draft operation.
type draftView struct {
	Draft             *models.ApplicationDraft `json:"draft"`
	State             wizard.State             `json:"state"`
	TotalSteps        int                      `json:"totalSteps"`
	Dirty             bool                     `json:"dirty"`
	FieldErrors       validation.FieldErrors   `json:"fieldErrors,omitempty"`
	LastAutosaveError string                   `json:"lastAutosaveError,omitempty"`
}

func viewOf(m *wizard.Machine) draftView {
	v := draftView{
		Draft:       m.Draft(),
		State:       m.State(),
		TotalSteps:  m.Registry().Len(),
		Dirty:       m.Dirty(),
		FieldErrors: m.FieldErrors(),
	}
	if err := m.LastAutosaveError(); err != nil {
		v.LastAutosaveError = err.Error()
	}
	return v
}

func (s *Server) machine(w http.ResponseWriter, r *http.Request) (*wizard.Machine, bool) {
	ctx, cancel := s.requestContext(r)
	defer cancel()

	m, err := s.cfg.Sessions.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return nil, false
	}
	return m, true
}

// mutate runs fn against the draft's machine, resuming the draft when its
// session is released mid-request. It writes the error response itself.
func (s *Server) mutate(w http.ResponseWriter, r *http.Request, fn func(*wizard.Machine) error) (*wizard.Machine, bool) {
	ctx, cancel := s.requestContext(r)
	defer cancel()

	m, err := s.cfg.Sessions.Do(ctx, chi.URLParam(r, "id"), fn)
	if err != nil {
		s.writeError(w, err)
		return nil, false
	}
	return m, true
}

func stepParam(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "step")
	step, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.NewInvalidInputError(fmt.Sprintf("step must be an integer, got %q", raw))
	}
	return step, nil
}

func (s *Server) createDraft(w http.ResponseWriter, r *http.Request) {
	m, err := s.cfg.Sessions.Create()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.logger.Info("draft created", map[string]interface{}{"draftId": m.ID()})
	writeJSON(w, http.StatusCreated, viewOf(m))
}

func (s *Server) getDraft(w http.ResponseWriter, r *http.Request) {
	m, ok := s.machine(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, viewOf(m))
}

func (s *Server) listDrafts(w http.ResponseWriter, r *http.Request) {
	filter, err := listFilterFrom(r.URL.Query(), s.cfg.ListLimit)
	if err != nil {
		s.writeError(w, err)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()
	drafts, err := s.cfg.Gateway.List(ctx, filter)
	if err != nil {
		s.writeError(w, errors.NewPersistenceFailureError("list", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"drafts": drafts,
		"limit":  filter.PageSize(),
		"offset": filter.Offset,
	})
}

type setFieldRequest struct {
	Value models.Value `json:"value"`
}

func (s *Server) setField(w http.ResponseWriter, r *http.Request) {
	var req setFieldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, errors.NewInvalidInputError(fmt.Sprintf("invalid field value: %v", err)))
		return
	}
	key := models.FieldKey(chi.URLParam(r, "key"))
	m, ok := s.mutate(w, r, func(m *wizard.Machine) error {
		return m.SetField(key, req.Value)
	})
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, viewOf(m))
}

func (s *Server) clearField(w http.ResponseWriter, r *http.Request) {
	key := models.FieldKey(chi.URLParam(r, "key"))
	m, ok := s.mutate(w, r, func(m *wizard.Machine) error {
		return m.ClearField(key)
	})
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, viewOf(m))
}

type navigateRequest struct {
	Step int `json:"step"`
}

func (s *Server) navigate(w http.ResponseWriter, r *http.Request) {
	var req navigateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, errors.NewInvalidInputError(fmt.Sprintf("invalid navigate request: %v", err)))
		return
	}
	m, ok := s.mutate(w, r, func(m *wizard.Machine) error {
		return m.GoToStep(req.Step)
	})
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, viewOf(m))
}

func (s *Server) validateStep(w http.ResponseWriter, r *http.Request) {
	step, err := stepParam(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var fieldErrors validation.FieldErrors
	m, ok := s.mutate(w, r, func(m *wizard.Machine) error {
		var err error
		fieldErrors, err = m.ValidateStep(step)
		return err
	})
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"step":        step,
		"valid":       len(fieldErrors) == 0,
		"fieldErrors": fieldErrors,
		"view":        viewOf(m),
	})
}

func (s *Server) submitStep(w http.ResponseWriter, r *http.Request) {
	step, err := stepParam(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	m, ok := s.mutate(w, r, func(m *wizard.Machine) error {
		return m.SubmitStep(step)
	})
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, viewOf(m))
}

func (s *Server) saveDraft(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.requestContext(r)
	defer cancel()
	m, ok := s.mutate(w, r, func(m *wizard.Machine) error {
		return m.Save(ctx)
	})
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, viewOf(m))
}

func (s *Server) submitApplication(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.requestContext(r)
	defer cancel()

	var doc models.SubmissionDocument
	if _, ok := s.mutate(w, r, func(m *wizard.Machine) error {
		var err error
		doc, err = m.SubmitApplication(ctx)
		return err
	}); !ok {
		return
	}
	s.cfg.Sessions.Release(doc.ApplicationID)
	writeJSON(w, http.StatusOK, map[string]interface{}{"submission": doc})
}

type fieldView struct {
	registry.FieldDescriptor
	Rules []validation.RuleSpec `json:"rules,omitempty"`
}

type stepView struct {
	Number      int         `json:"number"`
	Key         string      `json:"key"`
	Title       string      `json:"title"`
	HasRequired bool        `json:"hasRequired"`
	Fields      []fieldView `json:"fields"`
}

func (s *Server) getRegistry(w http.ResponseWriter, r *http.Request) {
	steps := s.cfg.Registry.Steps()
	out := make([]stepView, 0, len(steps))
	for _, st := range steps {
		sv := stepView{Number: st.Number, Key: st.Key, Title: st.Title, HasRequired: st.HasRequired()}
		for _, f := range st.Fields {
			sv.Fields = append(sv.Fields, fieldView{FieldDescriptor: f, Rules: f.RuleSpecs()})
		}
		out = append(out, sv)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"totalSteps": len(out),
		"steps":      out,
	})
}

func (s *Server) searchApplications(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Search == nil {
		s.writeError(w, errors.NewExternalServiceError("search", fmt.Errorf("application search is disabled")))
		return
	}

	query, err := searchQueryFrom(r.URL.Query())
	if err != nil {
		s.writeError(w, err)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()
	res, err := s.cfg.Search.Search(ctx, query)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
