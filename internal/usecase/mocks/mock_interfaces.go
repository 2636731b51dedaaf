//	mockgen -source=internal/usecase/interfaces.go -destination=internal/usecase/mocks/mock_interfaces.go -package=mocks
//

// Package mocks is a generated GoMock package.
package mocks

import (
	context "context"
	reflect "reflect"
	time "time"

	aggregation "github.com/iho/estateledger/internal/aggregation"
	classification "github.com/iho/estateledger/internal/classification"
	domain "github.com/iho/estateledger/internal/domain"
	usecase "github.com/iho/estateledger/internal/usecase"
	gomock "go.uber.org/mock/gomock"
)


// MockCaseRepository is a mock of CaseRepository interface.
type MockCaseRepository struct {
	ctrl     *gomock.Controller
	recorder *MockCaseRepositoryMockRecorder
	isgomock struct{}
}

// MockCaseRepositoryMockRecorder is the mock recorder for MockCaseRepository.
type MockCaseRepositoryMockRecorder struct {
	mock *MockCaseRepository
}

// NewMockCaseRepository creates a new mock instance.
func NewMockCaseRepository(ctrl *gomock.Controller) *MockCaseRepository {
	mock := &MockCaseRepository{ctrl: ctrl}
	mock.recorder = &MockCaseRepositoryMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockCaseRepository) EXPECT() *MockCaseRepositoryMockRecorder {
	return m.recorder
}

// GetByID mocks base method.
func (m *MockCaseRepository) GetByID(ctx context.Context, id string) (*domain.Case, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetByID", ctx, id)
	ret0, _ := ret[0].(*domain.Case)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// GetByID indicates an expected call of GetByID.
func (mr *MockCaseRepositoryMockRecorder) GetByID(ctx, id any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetByID", reflect.TypeOf((*MockCaseRepository)(nil).GetByID), ctx, id)
}

// MockPlanRepository is a mock of PlanRepository interface.
type MockPlanRepository struct {
	ctrl     *gomock.Controller
	recorder *MockPlanRepositoryMockRecorder
	isgomock struct{}
}

// MockPlanRepositoryMockRecorder is the mock recorder for MockPlanRepository.
type MockPlanRepositoryMockRecorder struct {
	mock *MockPlanRepository
}

// NewMockPlanRepository creates a new mock instance.
func NewMockPlanRepository(ctrl *gomock.Controller) *MockPlanRepository {
	mock := &MockPlanRepository{ctrl: ctrl}
	mock.recorder = &MockPlanRepositoryMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockPlanRepository) EXPECT() *MockPlanRepositoryMockRecorder {
	return m.recorder
}

// GetActive mocks base method.
func (m *MockPlanRepository) GetActive(ctx context.Context, caseID string) (*domain.Plan, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetActive", ctx, caseID)
	ret0, _ := ret[0].(*domain.Plan)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// GetActive indicates an expected call of GetActive.
func (mr *MockPlanRepositoryMockRecorder) GetActive(ctx, caseID any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetActive", reflect.TypeOf((*MockPlanRepository)(nil).GetActive), ctx, caseID)
}

// MockEntryRepository is a mock of EntryRepository interface.
type MockEntryRepository struct {
	ctrl     *gomock.Controller
	recorder *MockEntryRepositoryMockRecorder
	isgomock struct{}
}

// MockEntryRepositoryMockRecorder is the mock recorder for MockEntryRepository.
type MockEntryRepositoryMockRecorder struct {
	mock *MockEntryRepository
}

// NewMockEntryRepository creates a new mock instance.
func NewMockEntryRepository(ctrl *gomock.Controller) *MockEntryRepository {
	mock := &MockEntryRepository{ctrl: ctrl}
	mock.recorder = &MockEntryRepositoryMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockEntryRepository) EXPECT() *MockEntryRepositoryMockRecorder {
	return m.recorder
}

// ApplySuggestions mocks base method.
func (m *MockEntryRepository) ApplySuggestions(ctx context.Context, tx usecase.Transaction, caseID string, suggestions []classification.Suggestion) (int, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "ApplySuggestions", ctx, tx, caseID, suggestions)
	ret0, _ := ret[0].(int)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// ApplySuggestions indicates an expected call of ApplySuggestions.
func (mr *MockEntryRepositoryMockRecorder) ApplySuggestions(ctx, tx, caseID, suggestions any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ApplySuggestions", reflect.TypeOf((*MockEntryRepository)(nil).ApplySuggestions), ctx, tx, caseID, suggestions)
}

// CreateTx mocks base method.
func (m *MockEntryRepository) CreateTx(ctx context.Context, tx usecase.Transaction, entry *domain.LedgerEntry) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "CreateTx", ctx, tx, entry)
	ret0, _ := ret[0].(error)
	return ret0
}

// CreateTx indicates an expected call of CreateTx.
func (mr *MockEntryRepositoryMockRecorder) CreateTx(ctx, tx, entry any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "CreateTx", reflect.TypeOf((*MockEntryRepository)(nil).CreateTx), ctx, tx, entry)
}

// DeleteChildren mocks base method.
func (m *MockEntryRepository) DeleteChildren(ctx context.Context, tx usecase.Transaction, parentID string) (int, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "DeleteChildren", ctx, tx, parentID)
	ret0, _ := ret[0].(int)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// DeleteChildren indicates an expected call of DeleteChildren.
func (mr *MockEntryRepositoryMockRecorder) DeleteChildren(ctx, tx, parentID any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "DeleteChildren", reflect.TypeOf((*MockEntryRepository)(nil).DeleteChildren), ctx, tx, parentID)
}

// GetByID mocks base method.
func (m *MockEntryRepository) GetByID(ctx context.Context, caseID string, id string) (*domain.LedgerEntry, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetByID", ctx, caseID, id)
	ret0, _ := ret[0].(*domain.LedgerEntry)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// GetByID indicates an expected call of GetByID.
func (mr *MockEntryRepositoryMockRecorder) GetByID(ctx, caseID, id any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetByID", reflect.TypeOf((*MockEntryRepository)(nil).GetByID), ctx, caseID, id)
}

// GetByIDForUpdate mocks base method.
func (m *MockEntryRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, caseID string, id string) (*domain.LedgerEntry, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetByIDForUpdate", ctx, tx, caseID, id)
	ret0, _ := ret[0].(*domain.LedgerEntry)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// GetByIDForUpdate indicates an expected call of GetByIDForUpdate.
func (mr *MockEntryRepositoryMockRecorder) GetByIDForUpdate(ctx, tx, caseID, id any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetByIDForUpdate", reflect.TypeOf((*MockEntryRepository)(nil).GetByIDForUpdate), ctx, tx, caseID, id)
}

// ListByCase mocks base method.
func (m *MockEntryRepository) ListByCase(ctx context.Context, caseID string) ([]domain.LedgerEntry, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "ListByCase", ctx, caseID)
	ret0, _ := ret[0].([]domain.LedgerEntry)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// ListByCase indicates an expected call of ListByCase.
func (mr *MockEntryRepositoryMockRecorder) ListByCase(ctx, caseID any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ListByCase", reflect.TypeOf((*MockEntryRepository)(nil).ListByCase), ctx, caseID)
}

// ListChildren mocks base method.
func (m *MockEntryRepository) ListChildren(ctx context.Context, tx usecase.Transaction, parentID string) ([]domain.LedgerEntry, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "ListChildren", ctx, tx, parentID)
	ret0, _ := ret[0].([]domain.LedgerEntry)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// ListChildren indicates an expected call of ListChildren.
func (mr *MockEntryRepositoryMockRecorder) ListChildren(ctx, tx, parentID any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ListChildren", reflect.TypeOf((*MockEntryRepository)(nil).ListChildren), ctx, tx, parentID)
}

// UpdateReview mocks base method.
func (m *MockEntryRepository) UpdateReview(ctx context.Context, tx usecase.Transaction, entry *domain.LedgerEntry) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "UpdateReview", ctx, tx, entry)
	ret0, _ := ret[0].(error)
	return ret0
}

// UpdateReview indicates an expected call of UpdateReview.
func (mr *MockEntryRepositoryMockRecorder) UpdateReview(ctx, tx, entry any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "UpdateReview", reflect.TypeOf((*MockEntryRepository)(nil).UpdateReview), ctx, tx, entry)
}

// MockCounterpartyRepository is a mock of CounterpartyRepository interface.
type MockCounterpartyRepository struct {
	ctrl     *gomock.Controller
	recorder *MockCounterpartyRepositoryMockRecorder
	isgomock struct{}
}

// MockCounterpartyRepositoryMockRecorder is the mock recorder for MockCounterpartyRepository.
type MockCounterpartyRepositoryMockRecorder struct {
	mock *MockCounterpartyRepository
}

// NewMockCounterpartyRepository creates a new mock instance.
func NewMockCounterpartyRepository(ctrl *gomock.Controller) *MockCounterpartyRepository {
	mock := &MockCounterpartyRepository{ctrl: ctrl}
	mock.recorder = &MockCounterpartyRepositoryMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockCounterpartyRepository) EXPECT() *MockCounterpartyRepositoryMockRecorder {
	return m.recorder
}

// ListByCase mocks base method.
func (m *MockCounterpartyRepository) ListByCase(ctx context.Context, caseID string) ([]domain.Counterparty, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "ListByCase", ctx, caseID)
	ret0, _ := ret[0].([]domain.Counterparty)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// ListByCase indicates an expected call of ListByCase.
func (mr *MockCounterpartyRepositoryMockRecorder) ListByCase(ctx, caseID any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ListByCase", reflect.TypeOf((*MockCounterpartyRepository)(nil).ListByCase), ctx, caseID)
}

// MockBankAccountRepository is a mock of BankAccountRepository interface.
type MockBankAccountRepository struct {
	ctrl     *gomock.Controller
	recorder *MockBankAccountRepositoryMockRecorder
	isgomock struct{}
}

// MockBankAccountRepositoryMockRecorder is the mock recorder for MockBankAccountRepository.
type MockBankAccountRepositoryMockRecorder struct {
	mock *MockBankAccountRepository
}

// NewMockBankAccountRepository creates a new mock instance.
func NewMockBankAccountRepository(ctrl *gomock.Controller) *MockBankAccountRepository {
	mock := &MockBankAccountRepository{ctrl: ctrl}
	mock.recorder = &MockBankAccountRepositoryMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockBankAccountRepository) EXPECT() *MockBankAccountRepositoryMockRecorder {
	return m.recorder
}

// ListByCase mocks base method.
func (m *MockBankAccountRepository) ListByCase(ctx context.Context, caseID string) ([]domain.BankAccount, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "ListByCase", ctx, caseID)
	ret0, _ := ret[0].([]domain.BankAccount)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// ListByCase indicates an expected call of ListByCase.
func (mr *MockBankAccountRepositoryMockRecorder) ListByCase(ctx, caseID any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ListByCase", reflect.TypeOf((*MockBankAccountRepository)(nil).ListByCase), ctx, caseID)
}

// MockAggregationStateRepository is a mock of AggregationStateRepository interface.
type MockAggregationStateRepository struct {
	ctrl     *gomock.Controller
	recorder *MockAggregationStateRepositoryMockRecorder
	isgomock struct{}
}

// MockAggregationStateRepositoryMockRecorder is the mock recorder for MockAggregationStateRepository.
type MockAggregationStateRepositoryMockRecorder struct {
	mock *MockAggregationStateRepository
}

// NewMockAggregationStateRepository creates a new mock instance.
func NewMockAggregationStateRepository(ctrl *gomock.Controller) *MockAggregationStateRepository {
	mock := &MockAggregationStateRepository{ctrl: ctrl}
	mock.recorder = &MockAggregationStateRepositoryMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockAggregationStateRepository) EXPECT() *MockAggregationStateRepositoryMockRecorder {
	return m.recorder
}

// Get mocks base method.
func (m *MockAggregationStateRepository) Get(ctx context.Context, caseID string) (*domain.AggregationState, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Get", ctx, caseID)
	ret0, _ := ret[0].(*domain.AggregationState)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Get indicates an expected call of Get.
func (mr *MockAggregationStateRepositoryMockRecorder) Get(ctx, caseID any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Get", reflect.TypeOf((*MockAggregationStateRepository)(nil).Get), ctx, caseID)
}

// MarkCurrent mocks base method.
func (m *MockAggregationStateRepository) MarkCurrent(ctx context.Context, tx usecase.Transaction, caseID string, hash string, covered int, at time.Time) (*domain.AggregationState, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "MarkCurrent", ctx, tx, caseID, hash, covered, at)
	ret0, _ := ret[0].(*domain.AggregationState)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// MarkCurrent indicates an expected call of MarkCurrent.
func (mr *MockAggregationStateRepositoryMockRecorder) MarkCurrent(ctx, tx, caseID, hash, covered, at any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "MarkCurrent", reflect.TypeOf((*MockAggregationStateRepository)(nil).MarkCurrent), ctx, tx, caseID, hash, covered, at)
}

// MarkRebuilding mocks base method.
func (m *MockAggregationStateRepository) MarkRebuilding(ctx context.Context, caseID string, at time.Time) (*domain.AggregationState, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "MarkRebuilding", ctx, caseID, at)
	ret0, _ := ret[0].(*domain.AggregationState)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// MarkRebuilding indicates an expected call of MarkRebuilding.
func (mr *MockAggregationStateRepositoryMockRecorder) MarkRebuilding(ctx, caseID, at any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "MarkRebuilding", reflect.TypeOf((*MockAggregationStateRepository)(nil).MarkRebuilding), ctx, caseID, at)
}

// MarkStale mocks base method.
func (m *MockAggregationStateRepository) MarkStale(ctx context.Context, tx usecase.Transaction, caseID string, at time.Time) (*domain.AggregationState, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "MarkStale", ctx, tx, caseID, at)
	ret0, _ := ret[0].(*domain.AggregationState)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// MarkStale indicates an expected call of MarkStale.
func (mr *MockAggregationStateRepositoryMockRecorder) MarkStale(ctx, tx, caseID, at any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "MarkStale", reflect.TypeOf((*MockAggregationStateRepository)(nil).MarkStale), ctx, tx, caseID, at)
}

// ResetRebuilding mocks base method.
func (m *MockAggregationStateRepository) ResetRebuilding(ctx context.Context, caseID string, at time.Time) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "ResetRebuilding", ctx, caseID, at)
	ret0, _ := ret[0].(error)
	return ret0
}

// ResetRebuilding indicates an expected call of ResetRebuilding.
func (mr *MockAggregationStateRepositoryMockRecorder) ResetRebuilding(ctx, caseID, at any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ResetRebuilding", reflect.TypeOf((*MockAggregationStateRepository)(nil).ResetRebuilding), ctx, caseID, at)
}

// MockAuditRepository is a mock of AuditRepository interface.
type MockAuditRepository struct {
	ctrl     *gomock.Controller
	recorder *MockAuditRepositoryMockRecorder
	isgomock struct{}
}

// MockAuditRepositoryMockRecorder is the mock recorder for MockAuditRepository.
type MockAuditRepositoryMockRecorder struct {
	mock *MockAuditRepository
}

// NewMockAuditRepository creates a new mock instance.
func NewMockAuditRepository(ctrl *gomock.Controller) *MockAuditRepository {
	mock := &MockAuditRepository{ctrl: ctrl}
	mock.recorder = &MockAuditRepositoryMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockAuditRepository) EXPECT() *MockAuditRepositoryMockRecorder {
	return m.recorder
}

// CreateTx mocks base method.
func (m *MockAuditRepository) CreateTx(ctx context.Context, tx usecase.Transaction, log *domain.AuditLog) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "CreateTx", ctx, tx, log)
	ret0, _ := ret[0].(error)
	return ret0
}

// CreateTx indicates an expected call of CreateTx.
func (mr *MockAuditRepositoryMockRecorder) CreateTx(ctx, tx, log any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "CreateTx", reflect.TypeOf((*MockAuditRepository)(nil).CreateTx), ctx, tx, log)
}

// List mocks base method.
func (m *MockAuditRepository) List(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditLog, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "List", ctx, filter)
	ret0, _ := ret[0].([]*domain.AuditLog)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// List indicates an expected call of List.
func (mr *MockAuditRepositoryMockRecorder) List(ctx, filter any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "List", reflect.TypeOf((*MockAuditRepository)(nil).List), ctx, filter)
}

// MockTransaction is a mock of Transaction interface.
type MockTransaction struct {
	ctrl     *gomock.Controller
	recorder *MockTransactionMockRecorder
	isgomock struct{}
}

// MockTransactionMockRecorder is the mock recorder for MockTransaction.
type MockTransactionMockRecorder struct {
	mock *MockTransaction
}

// NewMockTransaction creates a new mock instance.
func NewMockTransaction(ctrl *gomock.Controller) *MockTransaction {
	mock := &MockTransaction{ctrl: ctrl}
	mock.recorder = &MockTransactionMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockTransaction) EXPECT() *MockTransactionMockRecorder {
	return m.recorder
}

// Commit mocks base method.
func (m *MockTransaction) Commit(ctx context.Context) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Commit", ctx)
	ret0, _ := ret[0].(error)
	return ret0
}

// Commit indicates an expected call of Commit.
func (mr *MockTransactionMockRecorder) Commit(ctx any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Commit", reflect.TypeOf((*MockTransaction)(nil).Commit), ctx)
}

// Rollback mocks base method.
func (m *MockTransaction) Rollback(ctx context.Context) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Rollback", ctx)
	ret0, _ := ret[0].(error)
	return ret0
}

// Rollback indicates an expected call of Rollback.
func (mr *MockTransactionMockRecorder) Rollback(ctx any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Rollback", reflect.TypeOf((*MockTransaction)(nil).Rollback), ctx)
}

// MockTransactionManager is a mock of TransactionManager interface.
type MockTransactionManager struct {
	ctrl     *gomock.Controller
	recorder *MockTransactionManagerMockRecorder
	isgomock struct{}
}

// MockTransactionManagerMockRecorder is the mock recorder for MockTransactionManager.
type MockTransactionManagerMockRecorder struct {
	mock *MockTransactionManager
}

// NewMockTransactionManager creates a new mock instance.
func NewMockTransactionManager(ctrl *gomock.Controller) *MockTransactionManager {
	mock := &MockTransactionManager{ctrl: ctrl}
	mock.recorder = &MockTransactionManagerMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockTransactionManager) EXPECT() *MockTransactionManagerMockRecorder {
	return m.recorder
}

// Begin mocks base method.
func (m *MockTransactionManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Begin", ctx)
	ret0, _ := ret[0].(usecase.Transaction)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Begin indicates an expected call of Begin.
func (mr *MockTransactionManagerMockRecorder) Begin(ctx any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Begin", reflect.TypeOf((*MockTransactionManager)(nil).Begin), ctx)
}

// MockRetrier is a mock of Retrier interface.
type MockRetrier struct {
	ctrl     *gomock.Controller
	recorder *MockRetrierMockRecorder
	isgomock struct{}
}

// MockRetrierMockRecorder is the mock recorder for MockRetrier.
type MockRetrierMockRecorder struct {
	mock *MockRetrier
}

// NewMockRetrier creates a new mock instance.
func NewMockRetrier(ctrl *gomock.Controller) *MockRetrier {
	mock := &MockRetrier{ctrl: ctrl}
	mock.recorder = &MockRetrierMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockRetrier) EXPECT() *MockRetrierMockRecorder {
	return m.recorder
}

// Retry mocks base method.
func (m *MockRetrier) Retry(ctx context.Context, op func() error) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Retry", ctx, op)
	ret0, _ := ret[0].(error)
	return ret0
}

// Retry indicates an expected call of Retry.
func (mr *MockRetrierMockRecorder) Retry(ctx, op any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Retry", reflect.TypeOf((*MockRetrier)(nil).Retry), ctx, op)
}

// MockIDGenerator is a mock of IDGenerator interface.
type MockIDGenerator struct {
	ctrl     *gomock.Controller
	recorder *MockIDGeneratorMockRecorder
	isgomock struct{}
}

// MockIDGeneratorMockRecorder is the mock recorder for MockIDGenerator.
type MockIDGeneratorMockRecorder struct {
	mock *MockIDGenerator
}

// NewMockIDGenerator creates a new mock instance.
func NewMockIDGenerator(ctrl *gomock.Controller) *MockIDGenerator {
	mock := &MockIDGenerator{ctrl: ctrl}
	mock.recorder = &MockIDGeneratorMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockIDGenerator) EXPECT() *MockIDGeneratorMockRecorder {
	return m.recorder
}

// Generate mocks base method.
func (m *MockIDGenerator) Generate() string {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Generate")
	ret0, _ := ret[0].(string)
	return ret0
}

// Generate indicates an expected call of Generate.
func (mr *MockIDGeneratorMockRecorder) Generate() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Generate", reflect.TypeOf((*MockIDGenerator)(nil).Generate))
}

// MockCache is a mock of Cache interface.
type MockCache struct {
	ctrl     *gomock.Controller
	recorder *MockCacheMockRecorder
	isgomock struct{}
}

// MockCacheMockRecorder is the mock recorder for MockCache.
type MockCacheMockRecorder struct {
	mock *MockCache
}

// NewMockCache creates a new mock instance.
func NewMockCache(ctrl *gomock.Controller) *MockCache {
	mock := &MockCache{ctrl: ctrl}
	mock.recorder = &MockCacheMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockCache) EXPECT() *MockCacheMockRecorder {
	return m.recorder
}

// Delete mocks base method.
func (m *MockCache) Delete(ctx context.Context, key string) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Delete", ctx, key)
	ret0, _ := ret[0].(error)
	return ret0
}

// Delete indicates an expected call of Delete.
func (mr *MockCacheMockRecorder) Delete(ctx, key any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Delete", reflect.TypeOf((*MockCache)(nil).Delete), ctx, key)
}

// Get mocks base method.
func (m *MockCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Get", ctx, key)
	ret0, _ := ret[0].([]byte)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Get indicates an expected call of Get.
func (mr *MockCacheMockRecorder) Get(ctx, key any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Get", reflect.TypeOf((*MockCache)(nil).Get), ctx, key)
}

// Set mocks base method.
func (m *MockCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Set", ctx, key, value, ttl)
	ret0, _ := ret[0].(error)
	return ret0
}

// Set indicates an expected call of Set.
func (mr *MockCacheMockRecorder) Set(ctx, key, value, ttl any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Set", reflect.TypeOf((*MockCache)(nil).Set), ctx, key, value, ttl)
}

// MockIdempotencyStore is a mock of IdempotencyStore interface.
type MockIdempotencyStore struct {
	ctrl     *gomock.Controller
	recorder *MockIdempotencyStoreMockRecorder
	isgomock struct{}
}

// MockIdempotencyStoreMockRecorder is the mock recorder for MockIdempotencyStore.
type MockIdempotencyStoreMockRecorder struct {
	mock *MockIdempotencyStore
}

// NewMockIdempotencyStore creates a new mock instance.
func NewMockIdempotencyStore(ctrl *gomock.Controller) *MockIdempotencyStore {
	mock := &MockIdempotencyStore{ctrl: ctrl}
	mock.recorder = &MockIdempotencyStoreMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockIdempotencyStore) EXPECT() *MockIdempotencyStoreMockRecorder {
	return m.recorder
}

// CheckAndSet mocks base method.
func (m *MockIdempotencyStore) CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "CheckAndSet", ctx, key, response, ttl)
	ret0, _ := ret[0].(bool)
	ret1, _ := ret[1].([]byte)
	ret2, _ := ret[2].(error)
	return ret0, ret1, ret2
}

// CheckAndSet indicates an expected call of CheckAndSet.
func (mr *MockIdempotencyStoreMockRecorder) CheckAndSet(ctx, key, response, ttl any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "CheckAndSet", reflect.TypeOf((*MockIdempotencyStore)(nil).CheckAndSet), ctx, key, response, ttl)
}

// Update mocks base method.
func (m *MockIdempotencyStore) Update(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Update", ctx, key, response, ttl)
	ret0, _ := ret[0].(error)
	return ret0
}

// Update indicates an expected call of Update.
func (mr *MockIdempotencyStoreMockRecorder) Update(ctx, key, response, ttl any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Update", reflect.TypeOf((*MockIdempotencyStore)(nil).Update), ctx, key, response, ttl)
}

// Release mocks base method.
func (m *MockIdempotencyStore) Release(ctx context.Context, key string) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Release", ctx, key)
	ret0, _ := ret[0].(error)
	return ret0
}

// Release indicates an expected call of Release.
func (mr *MockIdempotencyStoreMockRecorder) Release(ctx, key any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Release", reflect.TypeOf((*MockIdempotencyStore)(nil).Release), ctx, key)
}

// MockEventPublisher is a mock of EventPublisher interface.
type MockEventPublisher struct {
	ctrl     *gomock.Controller
	recorder *MockEventPublisherMockRecorder
	isgomock struct{}
}

// MockEventPublisherMockRecorder is the mock recorder for MockEventPublisher.
type MockEventPublisherMockRecorder struct {
	mock *MockEventPublisher
}

// NewMockEventPublisher creates a new mock instance.
func NewMockEventPublisher(ctrl *gomock.Controller) *MockEventPublisher {
	mock := &MockEventPublisher{ctrl: ctrl}
	mock.recorder = &MockEventPublisherMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockEventPublisher) EXPECT() *MockEventPublisherMockRecorder {
	return m.recorder
}

// Publish mocks base method.
func (m *MockEventPublisher) Publish(ctx context.Context, event domain.AggregationEvent) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Publish", ctx, event)
	ret0, _ := ret[0].(error)
	return ret0
}

// Publish indicates an expected call of Publish.
func (mr *MockEventPublisherMockRecorder) Publish(ctx, event any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Publish", reflect.TypeOf((*MockEventPublisher)(nil).Publish), ctx, event)
}

// MockMetrics is a mock of Metrics interface.
type MockMetrics struct {
	ctrl     *gomock.Controller
	recorder *MockMetricsMockRecorder
	isgomock struct{}
}

// MockMetricsMockRecorder is the mock recorder for MockMetrics.
type MockMetricsMockRecorder struct {
	mock *MockMetrics
}

// NewMockMetrics creates a new mock instance.
func NewMockMetrics(ctrl *gomock.Controller) *MockMetrics {
	mock := &MockMetrics{ctrl: ctrl}
	mock.recorder = &MockMetricsMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockMetrics) EXPECT() *MockMetricsMockRecorder {
	return m.recorder
}

// ObserveAggregation mocks base method.
func (m *MockMetrics) ObserveAggregation(scope string, elapsed time.Duration, res *aggregation.Result) {
	m.ctrl.T.Helper()
	m.ctrl.Call(m, "ObserveAggregation", scope, elapsed, res)
}

// ObserveAggregation indicates an expected call of ObserveAggregation.
func (mr *MockMetricsMockRecorder) ObserveAggregation(scope, elapsed, res any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ObserveAggregation", reflect.TypeOf((*MockMetrics)(nil).ObserveAggregation), scope, elapsed, res)
}

// ObserveCache mocks base method.
func (m *MockMetrics) ObserveCache(hit bool) {
	m.ctrl.T.Helper()
	m.ctrl.Call(m, "ObserveCache", hit)
}

// ObserveCache indicates an expected call of ObserveCache.
func (mr *MockMetricsMockRecorder) ObserveCache(hit any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ObserveCache", reflect.TypeOf((*MockMetrics)(nil).ObserveCache), hit)
}

// ObserveClassification mocks base method.
func (m *MockMetrics) ObserveClassification(matched int, unmatched int, patternErrors int) {
	m.ctrl.T.Helper()
	m.ctrl.Call(m, "ObserveClassification", matched, unmatched, patternErrors)
}

// ObserveClassification indicates an expected call of ObserveClassification.
func (mr *MockMetricsMockRecorder) ObserveClassification(matched, unmatched, patternErrors any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ObserveClassification", reflect.TypeOf((*MockMetrics)(nil).ObserveClassification), matched, unmatched, patternErrors)
}
