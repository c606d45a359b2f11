// Package memory is an in-process implementation of repository.Store used by
// the "memory" database driver and by service tests.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"landrace-threat/internal/models"
	"landrace-threat/internal/repository"
)

type state struct {
	assessments   map[string]models.Assessment
	assignments   map[string][]models.Assignment
	comments      []models.Comment
	notifications []models.Notification
	taxonLinks    map[string]models.TaxonLink
	users         map[string]models.User
	audit         []models.AuditLog

	nextComment      int64
	nextNotification int64
	nextAudit        int64
}

func newState() *state {
	return &state{
		assessments: make(map[string]models.Assessment),
		assignments: make(map[string][]models.Assignment),
		taxonLinks:  make(map[string]models.TaxonLink),
		users:       make(map[string]models.User),
	}
}

func (s *state) clone() *state {
	c := &state{
		assessments:      make(map[string]models.Assessment, len(s.assessments)),
		assignments:      make(map[string][]models.Assignment, len(s.assignments)),
		comments:         slices.Clone(s.comments),
		notifications:    slices.Clone(s.notifications),
		taxonLinks:       make(map[string]models.TaxonLink, len(s.taxonLinks)),
		users:            make(map[string]models.User, len(s.users)),
		audit:            slices.Clone(s.audit),
		nextComment:      s.nextComment,
		nextNotification: s.nextNotification,
		nextAudit:        s.nextAudit,
	}
	for k, v := range s.assessments {
		c.assessments[k] = copyAssessment(v)
	}
	for k, v := range s.assignments {
		c.assignments[k] = slices.Clone(v)
	}
	for k, v := range s.taxonLinks {
		c.taxonLinks[k] = v
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	return c
}

func copyAssessment(a models.Assessment) models.Assessment {
	a.Subcriteria = a.Subcriteria.Clone()
	return a
}

type db struct {
	mu     sync.Mutex
	st     *state
	faults map[string]error
}

// Store keeps all records in memory. Transactions are serialised and roll
// back by restoring a snapshot.
type Store struct {
	db   *db
	inTx bool
}

// New creates an empty store
func New() *Store {
	return &Store{db: &db{st: newState(), faults: make(map[string]error)}}
}

var _ repository.Store = (*Store)(nil)

// SetFault makes every later call of op fail with err. op is a dotted name
// such as "notifications.create"; appending ":<key>" narrows the fault to one
// recipient, user or assessment id. A nil err clears the fault.
func (s *Store) SetFault(op string, err error) {
	unlock := s.lock()
	defer unlock()
	if err == nil {
		delete(s.db.faults, op)
		return
	}
	s.db.faults[op] = err
}

// ClearFaults removes all injected faults
func (s *Store) ClearFaults() {
	unlock := s.lock()
	defer unlock()
	clear(s.db.faults)
}

func (s *Store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.db.mu.Lock()
	return s.db.mu.Unlock
}

func (s *Store) fault(op, key string) error {
	if err, ok := s.db.faults[op]; ok {
		return fmt.Errorf("%s: %w", op, err)
	}
	if key != "" {
		if err, ok := s.db.faults[op+":"+key]; ok {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return nil
}

func (s *Store) Assessments() repository.Assessments     { return assessments{s} }
func (s *Store) Assignments() repository.Assignments     { return assignments{s} }
func (s *Store) Comments() repository.Comments           { return comments{s} }
func (s *Store) Notifications() repository.Notifications { return notifications{s} }
func (s *Store) TaxonLinks() repository.TaxonLinks       { return taxonLinks{s} }
func (s *Store) Users() repository.Users                 { return users{s} }
func (s *Store) Audit() repository.Audit                 { return audit{s} }

// InTx runs fn with exclusive access and restores the previous state if fn
// returns an error
func (s *Store) InTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if err := s.fault("tx.begin", ""); err != nil {
		return err
	}

	snapshot := s.db.st.clone()
	if err := fn(&Store{db: s.db, inTx: true}); err != nil {
		s.db.st = snapshot
		return err
	}
	if err := s.fault("tx.commit", ""); err != nil {
		s.db.st = snapshot
		return err
	}
	return nil
}

// Ping always succeeds unless a "ping" fault is set
func (s *Store) Ping(ctx context.Context) error {
	unlock := s.lock()
	defer unlock()
	if err := s.fault("ping", ""); err != nil {
		return err
	}
	return ctx.Err()
}

type assessments struct{ s *Store }

func (r assessments) Create(_ context.Context, a *models.Assessment) error {
	unlock := r.s.lock()
	defer unlock()
	if err := r.s.fault("assessments.create", a.ID); err != nil {
		return err
	}

	st := r.s.db.st
	if _, ok := st.assessments[a.ID]; ok {
		return repository.ErrDuplicate
	}
	if a.PublicID != nil && publicIDTaken(st, *a.PublicID, a.ID) {
		return repository.ErrDuplicate
	}

	now := time.Now()
	if a.Version == 0 {
		a.Version = 1
	}
	a.CreatedAt = now
	a.UpdatedAt = now
	st.assessments[a.ID] = copyAssessment(*a)
	return nil
}

func publicIDTaken(st *state, publicID, exceptID string) bool {
	for id, other := range st.assessments {
		if id != exceptID && other.PublicID != nil && *other.PublicID == publicID {
			return true
		}
	}
	return false
}

func (r assessments) get(op, id string, match func(models.Assessment) bool) (*models.Assessment, error) {
	unlock := r.s.lock()
	defer unlock()
	if err := r.s.fault(op, id); err != nil {
		return nil, err
	}
	a, ok := r.s.db.st.assessments[id]
	if !ok || !match(a) {
		return nil, nil
	}
	c := copyAssessment(a)
	return &c, nil
}

func (r assessments) GetByID(_ context.Context, id string) (*models.Assessment, error) {
	return r.get("assessments.get", id, func(models.Assessment) bool { return true })
}

func (r assessments) GetDraft(_ context.Context, id string) (*models.Assessment, error) {
	return r.get("assessments.get", id, func(a models.Assessment) bool { return !a.Published })
}

func (r assessments) GetPublished(_ context.Context, publicID string) (*models.Assessment, error) {
	unlock := r.s.lock()
	defer unlock()
	if err := r.s.fault("assessments.get", publicID); err != nil {
		return nil, err
	}
	for _, a := range r.s.db.st.assessments {
		if a.Published && a.PublicID != nil && *a.PublicID == publicID {
			c := copyAssessment(a)
			return &c, nil
		}
	}
	return nil, nil
}

func (r assessments) Update(_ context.Context, a *models.Assessment, expectedVersion int, expectedStatus models.Status) (bool, error) {
	unlock := r.s.lock()
	defer unlock()
	if err := r.s.fault("assessments.update", a.ID); err != nil {
		return false, err
	}

	st := r.s.db.st
	stored, ok := st.assessments[a.ID]
	if !ok || stored.Version != expectedVersion || stored.Status != expectedStatus {
		return false, nil
	}
	if a.PublicID != nil && publicIDTaken(st, *a.PublicID, a.ID) {
		return false, repository.ErrDuplicate
	}

	a.Version = expectedVersion + 1
	a.CreatedAt = stored.CreatedAt
	a.CreatedBy = stored.CreatedBy
	a.UpdatedAt = time.Now()
	st.assessments[a.ID] = copyAssessment(*a)
	return true, nil
}

func (r assessments) SetArchiveURL(_ context.Context, id, url string) error {
	unlock := r.s.lock()
	defer unlock()
	if err := r.s.fault("assessments.setArchiveURL", id); err != nil {
		return err
	}
	a, ok := r.s.db.st.assessments[id]
	if !ok {
		return nil
	}
	a.ArchiveURL = &url
	a.UpdatedAt = time.Now()
	r.s.db.st.assessments[id] = a
	return nil
}

func (r assessments) Delete(_ context.Context, id string) (int64, error) {
	unlock := r.s.lock()
	defer unlock()
	if err := r.s.fault("assessments.delete", id); err != nil {
		return 0, err
	}

	st := r.s.db.st
	if _, ok := st.assessments[id]; !ok {
		return 0, nil
	}
	delete(st.assessments, id)
	delete(st.assignments, id)
	delete(st.taxonLinks, id)
	st.comments = slices.DeleteFunc(st.comments, func(c models.Comment) bool { return c.AssessmentID == id })
	return 1, nil
}

func (r assessments) list(op string, match func(*state, models.Assessment) bool, less func(a, b models.Assessment) bool) ([]models.Assessment, error) {
	unlock := r.s.lock()
	defer unlock()
	if err := r.s.fault(op, ""); err != nil {
		return nil, err
	}

	st := r.s.db.st
	var out []models.Assessment
	for _, a := range st.assessments {
		if match(st, a) {
			out = append(out, copyAssessment(a))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if less(out[i], out[j]) {
			return true
		}
		if less(out[j], out[i]) {
			return false
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r assessments) ListByStatus(_ context.Context, status models.Status) ([]models.Assessment, error) {
	return r.list("assessments.list",
		func(_ *state, a models.Assessment) bool { return a.Status == status && !a.Published },
		func(a, b models.Assessment) bool { return a.CreatedAt.Before(b.CreatedAt) },
	)
}

func (r assessments) ListUnreconciled(_ context.Context) ([]models.Assessment, error) {
	return r.list("assessments.list",
		func(st *state, a models.Assessment) bool {
			if a.Status != models.StatusApproved {
				return false
			}
			if !a.Published || a.PublicID == nil {
				return true
			}
			if len(st.assignments[a.ID]) > 0 {
				return true
			}
			if _, ok := st.taxonLinks[a.ID]; ok {
				return true
			}
			return slices.ContainsFunc(st.comments, func(c models.Comment) bool { return c.AssessmentID == a.ID })
		},
		func(a, b models.Assessment) bool { return a.UpdatedAt.Before(b.UpdatedAt) },
	)
}

type assignments struct{ s *Store }

func (r assignments) Create(_ context.Context, a *models.Assignment) error {
	unlock := r.s.lock()
	defer unlock()
	if err := r.s.fault("assignments.create", a.UserID); err != nil {
		return err
	}

	st := r.s.db.st
	if slices.ContainsFunc(st.assignments[a.AssessmentID], func(x models.Assignment) bool { return x.UserID == a.UserID }) {
		return repository.ErrDuplicate
	}
	a.CreatedAt = time.Now()
	st.assignments[a.AssessmentID] = append(st.assignments[a.AssessmentID], *a)
	return nil
}

func (r assignments) Get(_ context.Context, assessmentID, userID string) (*models.Assignment, error) {
	unlock := r.s.lock()
	defer unlock()
	if err := r.s.fault("assignments.get", userID); err != nil {
		return nil, err
	}
	for _, a := range r.s.db.st.assignments[assessmentID] {
		if a.UserID == userID {
			return &a, nil
		}
	}
	return nil, nil
}

func (r assignments) ListByAssessment(_ context.Context, assessmentID string) ([]models.Assignment, error) {
	unlock := r.s.lock()
	defer unlock()
	if err := r.s.fault("assignments.list", assessmentID); err != nil {
		return nil, err
	}
	return slices.Clone(r.s.db.st.assignments[assessmentID]), nil
}

func (r assignments) UpdateRole(_ context.Context, assessmentID, userID string, role models.Role) (int64, error) {
	unlock := r.s.lock()
	defer unlock()
	if err := r.s.fault("assignments.updateRole", userID); err != nil {
		return 0, err
	}
	team := r.s.db.st.assignments[assessmentID]
	for i := range team {
		if team[i].UserID == userID {
			team[i].Role = role
			return 1, nil
		}
	}
	return 0, nil
}

func (r assignments) Delete(_ context.Context, assessmentID, userID string) (int64, error) {
	unlock := r.s.lock()
	defer unlock()
	if err := r.s.fault("assignments.delete", userID); err != nil {
		return 0, err
	}
	st := r.s.db.st
	before := len(st.assignments[assessmentID])
	st.assignments[assessmentID] = slices.DeleteFunc(st.assignments[assessmentID], func(a models.Assignment) bool {
		return a.UserID == userID
	})
	return int64(before - len(st.assignments[assessmentID])), nil
}

func (r assignments) DeleteByAssessment(_ context.Context, assessmentID string) (int64, error) {
	unlock := r.s.lock()
	defer unlock()
	if err := r.s.fault("assignments.deleteByAssessment", assessmentID); err != nil {
		return 0, err
	}
	n := len(r.s.db.st.assignments[assessmentID])
	delete(r.s.db.st.assignments, assessmentID)
	return int64(n), nil
}

type comments struct{ s *Store }

func (r comments) Create(_ context.Context, c *models.Comment) error {
	unlock := r.s.lock()
	defer unlock()
	if err := r.s.fault("comments.create", c.AssessmentID); err != nil {
		return err
	}
	st := r.s.db.st
	st.nextComment++
	c.ID = st.nextComment
	c.CreatedAt = time.Now()
	st.comments = append(st.comments, *c)
	return nil
}

func (r comments) ListByAssessment(_ context.Context, assessmentID string) ([]models.Comment, error) {
	unlock := r.s.lock()
	defer unlock()
	if err := r.s.fault("comments.list", assessmentID); err != nil {
		return nil, err
	}
	var out []models.Comment
	for _, c := range r.s.db.st.comments {
		if c.AssessmentID == assessmentID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r comments) CountByAssessment(ctx context.Context, assessmentID string) (int, error) {
	list, err := r.ListByAssessment(ctx, assessmentID)
	return len(list), err
}

func (r comments) DeleteByAssessment(_ context.Context, assessmentID string) (int64, error) {
	unlock := r.s.lock()
	defer unlock()
	if err := r.s.fault("comments.deleteByAssessment", assessmentID); err != nil {
		return 0, err
	}
	st := r.s.db.st
	before := len(st.comments)
	st.comments = slices.DeleteFunc(st.comments, func(c models.Comment) bool { return c.AssessmentID == assessmentID })
	return int64(before - len(st.comments)), nil
}

type notifications struct{ s *Store }

func (r notifications) Create(_ context.Context, n *models.Notification) error {
	unlock := r.s.lock()
	defer unlock()
	if err := r.s.fault("notifications.create", n.RecipientID); err != nil {
		return err
	}
	st := r.s.db.st
	st.nextNotification++
	n.ID = st.nextNotification
	n.CreatedAt = time.Now()
	st.notifications = append(st.notifications, *n)
	return nil
}

func (r notifications) GetByID(_ context.Context, id int64) (*models.Notification, error) {
	unlock := r.s.lock()
	defer unlock()
	if err := r.s.fault("notifications.get", ""); err != nil {
		return nil, err
	}
	for _, n := range r.s.db.st.notifications {
		if n.ID == id {
			return &n, nil
		}
	}
	return nil, nil
}

func (r notifications) ListByRecipient(_ context.Context, recipientID string, unreadOnly bool) ([]models.Notification, error) {
	unlock := r.s.lock()
	defer unlock()
	if err := r.s.fault("notifications.list", recipientID); err != nil {
		return nil, err
	}
	var out []models.Notification
	for _, n := range slices.Backward(r.s.db.st.notifications) {
		if n.RecipientID == recipientID && (!unreadOnly || !n.Read) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (r notifications) MarkRead(_ context.Context, id int64) (int64, error) {
	unlock := r.s.lock()
	defer unlock()
	if err := r.s.fault("notifications.markRead", ""); err != nil {
		return 0, err
	}
	list := r.s.db.st.notifications
	for i := range list {
		if list[i].ID == id {
			list[i].Read = true
			return 1, nil
		}
	}
	return 0, nil
}

type taxonLinks struct{ s *Store }

func (r taxonLinks) Set(_ context.Context, link *models.TaxonLink) error {
	unlock := r.s.lock()
	defer unlock()
	if err := r.s.fault("taxonLinks.set", link.AssessmentID); err != nil {
		return err
	}
	st := r.s.db.st
	if existing, ok := st.taxonLinks[link.AssessmentID]; ok {
		link.CreatedAt = existing.CreatedAt
	} else {
		link.CreatedAt = time.Now()
	}
	st.taxonLinks[link.AssessmentID] = *link
	return nil
}

func (r taxonLinks) Get(_ context.Context, assessmentID string) (*models.TaxonLink, error) {
	unlock := r.s.lock()
	defer unlock()
	if err := r.s.fault("taxonLinks.get", assessmentID); err != nil {
		return nil, err
	}
	link, ok := r.s.db.st.taxonLinks[assessmentID]
	if !ok {
		return nil, nil
	}
	return &link, nil
}

func (r taxonLinks) DeleteByAssessment(_ context.Context, assessmentID string) (int64, error) {
	unlock := r.s.lock()
	defer unlock()
	if err := r.s.fault("taxonLinks.deleteByAssessment", assessmentID); err != nil {
		return 0, err
	}
	if _, ok := r.s.db.st.taxonLinks[assessmentID]; !ok {
		return 0, nil
	}
	delete(r.s.db.st.taxonLinks, assessmentID)
	return 1, nil
}

type users struct{ s *Store }

func (r users) GetByID(_ context.Context, id string) (*models.User, error) {
	unlock := r.s.lock()
	defer unlock()
	if err := r.s.fault("users.get", id); err != nil {
		return nil, err
	}
	u, ok := r.s.db.st.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r users) Upsert(_ context.Context, u *models.User) error {
	unlock := r.s.lock()
	defer unlock()
	if err := r.s.fault("users.upsert", u.ID); err != nil {
		return err
	}
	now := time.Now()
	if existing, ok := r.s.db.st.users[u.ID]; ok {
		u.CreatedAt = existing.CreatedAt
	} else {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	r.s.db.st.users[u.ID] = *u
	return nil
}

type audit struct{ s *Store }

func (r audit) Create(_ context.Context, log *models.AuditLog) error {
	unlock := r.s.lock()
	defer unlock()
	if err := r.s.fault("audit.create", ""); err != nil {
		return err
	}
	st := r.s.db.st
	st.nextAudit++
	log.ID = st.nextAudit
	log.CreatedAt = time.Now()
	st.audit = append(st.audit, *log)
	return nil
}

func (r audit) List(_ context.Context, limit, offset int) ([]models.AuditLog, error) {
	unlock := r.s.lock()
	defer unlock()
	if err := r.s.fault("audit.list", ""); err != nil {
		return nil, err
	}
	var out []models.AuditLog
	for _, log := range slices.Backward(r.s.db.st.audit) {
		if offset > 0 {
			offset--
			continue
		}
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, log)
	}
	return out, nil
}
