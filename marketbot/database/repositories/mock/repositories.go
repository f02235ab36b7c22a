package mock

import (
	context "context"
	reflect "reflect"
	time "time"

	models "github.com/flowermarket/market-bot/marketbot/database/models"
	repositories "github.com/flowermarket/market-bot/marketbot/database/repositories"
	uuid "github.com/google/uuid"
	gomock "go.uber.org/mock/gomock"
)

// MockUserRepository is a mock of UserRepository interface.
type MockUserRepository struct {
	ctrl     *gomock.Controller
	recorder *MockUserRepositoryMockRecorder
	isgomock struct{}
}

// MockUserRepositoryMockRecorder is the mock recorder for MockUserRepository.
type MockUserRepositoryMockRecorder struct {
	mock *MockUserRepository
}

// NewMockUserRepository creates a new mock instance.
func NewMockUserRepository(ctrl *gomock.Controller) *MockUserRepository {
	mock := &MockUserRepository{ctrl: ctrl}
	mock.recorder = &MockUserRepositoryMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockUserRepository) EXPECT() *MockUserRepositoryMockRecorder {
	return m.recorder
}

// AdjustBalance mocks base method.
func (m *MockUserRepository) AdjustBalance(ctx context.Context, discordID string, amount int64) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "AdjustBalance", ctx, discordID, amount)
	ret0, _ := ret[0].(error)
	return ret0
}

// AdjustBalance indicates an expected call of AdjustBalance.
func (mr *MockUserRepositoryMockRecorder) AdjustBalance(ctx, discordID, amount any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "AdjustBalance", reflect.TypeOf((*MockUserRepository)(nil).AdjustBalance), ctx, discordID, amount)
}

// Create mocks base method.
func (m *MockUserRepository) Create(ctx context.Context, user *models.User) (bool, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Create", ctx, user)
	ret0, _ := ret[0].(bool)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Create indicates an expected call of Create.
func (mr *MockUserRepositoryMockRecorder) Create(ctx, user any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Create", reflect.TypeOf((*MockUserRepository)(nil).Create), ctx, user)
}

// GetByDiscordID mocks base method.
func (m *MockUserRepository) GetByDiscordID(ctx context.Context, discordID string) (*models.User, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetByDiscordID", ctx, discordID)
	ret0, _ := ret[0].(*models.User)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// GetByDiscordID indicates an expected call of GetByDiscordID.
func (mr *MockUserRepositoryMockRecorder) GetByDiscordID(ctx, discordID any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetByDiscordID", reflect.TypeOf((*MockUserRepository)(nil).GetByDiscordID), ctx, discordID)
}

// Totals mocks base method.
func (m *MockUserRepository) Totals(ctx context.Context) (repositories.Totals, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Totals", ctx)
	ret0, _ := ret[0].(repositories.Totals)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Totals indicates an expected call of Totals.
func (mr *MockUserRepositoryMockRecorder) Totals(ctx any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Totals", reflect.TypeOf((*MockUserRepository)(nil).Totals), ctx)
}

// MockPaymentRepository is a mock of PaymentRepository interface.
type MockPaymentRepository struct {
	ctrl     *gomock.Controller
	recorder *MockPaymentRepositoryMockRecorder
	isgomock struct{}
}

// MockPaymentRepositoryMockRecorder is the mock recorder for MockPaymentRepository.
type MockPaymentRepositoryMockRecorder struct {
	mock *MockPaymentRepository
}

// NewMockPaymentRepository creates a new mock instance.
func NewMockPaymentRepository(ctrl *gomock.Controller) *MockPaymentRepository {
	mock := &MockPaymentRepository{ctrl: ctrl}
	mock.recorder = &MockPaymentRepositoryMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockPaymentRepository) EXPECT() *MockPaymentRepositoryMockRecorder {
	return m.recorder
}

// Approve mocks base method.
func (m *MockPaymentRepository) Approve(ctx context.Context, id int64, reviewer string) (*models.Payment, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Approve", ctx, id, reviewer)
	ret0, _ := ret[0].(*models.Payment)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Approve indicates an expected call of Approve.
func (mr *MockPaymentRepositoryMockRecorder) Approve(ctx, id, reviewer any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Approve", reflect.TypeOf((*MockPaymentRepository)(nil).Approve), ctx, id, reviewer)
}

// ApprovedSince mocks base method.
func (m *MockPaymentRepository) ApprovedSince(ctx context.Context, since time.Time) (repositories.Totals, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "ApprovedSince", ctx, since)
	ret0, _ := ret[0].(repositories.Totals)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// ApprovedSince indicates an expected call of ApprovedSince.
func (mr *MockPaymentRepositoryMockRecorder) ApprovedSince(ctx, since any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ApprovedSince", reflect.TypeOf((*MockPaymentRepository)(nil).ApprovedSince), ctx, since)
}

// Create mocks base method.
func (m *MockPaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Create", ctx, payment)
	ret0, _ := ret[0].(error)
	return ret0
}

// Create indicates an expected call of Create.
func (mr *MockPaymentRepositoryMockRecorder) Create(ctx, payment any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Create", reflect.TypeOf((*MockPaymentRepository)(nil).Create), ctx, payment)
}

// GetByID mocks base method.
func (m *MockPaymentRepository) GetByID(ctx context.Context, id int64) (*models.Payment, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetByID", ctx, id)
	ret0, _ := ret[0].(*models.Payment)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// GetByID indicates an expected call of GetByID.
func (mr *MockPaymentRepositoryMockRecorder) GetByID(ctx, id any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetByID", reflect.TypeOf((*MockPaymentRepository)(nil).GetByID), ctx, id)
}

// GetPending mocks base method.
func (m *MockPaymentRepository) GetPending(ctx context.Context) ([]*models.Payment, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetPending", ctx)
	ret0, _ := ret[0].([]*models.Payment)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// GetPending indicates an expected call of GetPending.
func (mr *MockPaymentRepositoryMockRecorder) GetPending(ctx any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetPending", reflect.TypeOf((*MockPaymentRepository)(nil).GetPending), ctx)
}

// Reject mocks base method.
func (m *MockPaymentRepository) Reject(ctx context.Context, id int64, reviewer string) (*models.Payment, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Reject", ctx, id, reviewer)
	ret0, _ := ret[0].(*models.Payment)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Reject indicates an expected call of Reject.
func (mr *MockPaymentRepositoryMockRecorder) Reject(ctx, id, reviewer any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Reject", reflect.TypeOf((*MockPaymentRepository)(nil).Reject), ctx, id, reviewer)
}

// MockDraftRepository is a mock of DraftRepository interface.
type MockDraftRepository struct {
	ctrl     *gomock.Controller
	recorder *MockDraftRepositoryMockRecorder
	isgomock struct{}
}

// MockDraftRepositoryMockRecorder is the mock recorder for MockDraftRepository.
type MockDraftRepositoryMockRecorder struct {
	mock *MockDraftRepository
}

// NewMockDraftRepository creates a new mock instance.
func NewMockDraftRepository(ctrl *gomock.Controller) *MockDraftRepository {
	mock := &MockDraftRepository{ctrl: ctrl}
	mock.recorder = &MockDraftRepositoryMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockDraftRepository) EXPECT() *MockDraftRepositoryMockRecorder {
	return m.recorder
}

// AwaitPayment mocks base method.
func (m *MockDraftRepository) AwaitPayment(ctx context.Context, id uuid.UUID, fee int64) (bool, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "AwaitPayment", ctx, id, fee)
	ret0, _ := ret[0].(bool)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// AwaitPayment indicates an expected call of AwaitPayment.
func (mr *MockDraftRepositoryMockRecorder) AwaitPayment(ctx, id, fee any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "AwaitPayment", reflect.TypeOf((*MockDraftRepository)(nil).AwaitPayment), ctx, id, fee)
}

// CancelOpenByOwner mocks base method.
func (m *MockDraftRepository) CancelOpenByOwner(ctx context.Context, ownerID string) (int, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "CancelOpenByOwner", ctx, ownerID)
	ret0, _ := ret[0].(int)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// CancelOpenByOwner indicates an expected call of CancelOpenByOwner.
func (mr *MockDraftRepositoryMockRecorder) CancelOpenByOwner(ctx, ownerID any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "CancelOpenByOwner", reflect.TypeOf((*MockDraftRepository)(nil).CancelOpenByOwner), ctx, ownerID)
}

// Create mocks base method.
func (m *MockDraftRepository) Create(ctx context.Context, draft *models.ListingDraft) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Create", ctx, draft)
	ret0, _ := ret[0].(error)
	return ret0
}

// Create indicates an expected call of Create.
func (mr *MockDraftRepositoryMockRecorder) Create(ctx, draft any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Create", reflect.TypeOf((*MockDraftRepository)(nil).Create), ctx, draft)
}

// ExpireBefore mocks base method.
func (m *MockDraftRepository) ExpireBefore(ctx context.Context, now time.Time) (int, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "ExpireBefore", ctx, now)
	ret0, _ := ret[0].(int)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// ExpireBefore indicates an expected call of ExpireBefore.
func (mr *MockDraftRepositoryMockRecorder) ExpireBefore(ctx, now any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ExpireBefore", reflect.TypeOf((*MockDraftRepository)(nil).ExpireBefore), ctx, now)
}

// GetByID mocks base method.
func (m *MockDraftRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ListingDraft, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetByID", ctx, id)
	ret0, _ := ret[0].(*models.ListingDraft)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// GetByID indicates an expected call of GetByID.
func (mr *MockDraftRepositoryMockRecorder) GetByID(ctx, id any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetByID", reflect.TypeOf((*MockDraftRepository)(nil).GetByID), ctx, id)
}

// GetOpenByOwner mocks base method.
func (m *MockDraftRepository) GetOpenByOwner(ctx context.Context, ownerID string, status models.DraftStatus) (*models.ListingDraft, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetOpenByOwner", ctx, ownerID, status)
	ret0, _ := ret[0].(*models.ListingDraft)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// GetOpenByOwner indicates an expected call of GetOpenByOwner.
func (mr *MockDraftRepositoryMockRecorder) GetOpenByOwner(ctx, ownerID, status any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetOpenByOwner", reflect.TypeOf((*MockDraftRepository)(nil).GetOpenByOwner), ctx, ownerID, status)
}

// Transition mocks base method.
func (m *MockDraftRepository) Transition(ctx context.Context, id uuid.UUID, from, to models.DraftStatus) (bool, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Transition", ctx, id, from, to)
	ret0, _ := ret[0].(bool)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Transition indicates an expected call of Transition.
func (mr *MockDraftRepositoryMockRecorder) Transition(ctx, id, from, to any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Transition", reflect.TypeOf((*MockDraftRepository)(nil).Transition), ctx, id, from, to)
}

// Update mocks base method.
func (m *MockDraftRepository) Update(ctx context.Context, draft *models.ListingDraft) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Update", ctx, draft)
	ret0, _ := ret[0].(error)
	return ret0
}

// Update indicates an expected call of Update.
func (mr *MockDraftRepositoryMockRecorder) Update(ctx, draft any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Update", reflect.TypeOf((*MockDraftRepository)(nil).Update), ctx, draft)
}

// MockSettingsRepository is a mock of SettingsRepository interface.
type MockSettingsRepository struct {
	ctrl     *gomock.Controller
	recorder *MockSettingsRepositoryMockRecorder
	isgomock struct{}
}

// MockSettingsRepositoryMockRecorder is the mock recorder for MockSettingsRepository.
type MockSettingsRepositoryMockRecorder struct {
	mock *MockSettingsRepository
}

// NewMockSettingsRepository creates a new mock instance.
func NewMockSettingsRepository(ctrl *gomock.Controller) *MockSettingsRepository {
	mock := &MockSettingsRepository{ctrl: ctrl}
	mock.recorder = &MockSettingsRepositoryMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockSettingsRepository) EXPECT() *MockSettingsRepositoryMockRecorder {
	return m.recorder
}

// All mocks base method.
func (m *MockSettingsRepository) All(ctx context.Context) (map[string]string, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "All", ctx)
	ret0, _ := ret[0].(map[string]string)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// All indicates an expected call of All.
func (mr *MockSettingsRepositoryMockRecorder) All(ctx any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "All", reflect.TypeOf((*MockSettingsRepository)(nil).All), ctx)
}

// Set mocks base method.
func (m *MockSettingsRepository) Set(ctx context.Context, key, value, updatedBy string) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Set", ctx, key, value, updatedBy)
	ret0, _ := ret[0].(error)
	return ret0
}

// Set indicates an expected call of Set.
func (mr *MockSettingsRepositoryMockRecorder) Set(ctx, key, value, updatedBy any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Set", reflect.TypeOf((*MockSettingsRepository)(nil).Set), ctx, key, value, updatedBy)
}
