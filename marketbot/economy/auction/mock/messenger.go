package mock

import (
	context "context"
	reflect "reflect"

	auction "github.com/flowermarket/market-bot/marketbot/economy/auction"
	gomock "go.uber.org/mock/gomock"
)

// MockMessenger is a mock of Messenger interface.
type MockMessenger struct {
	ctrl     *gomock.Controller
	recorder *MockMessengerMockRecorder
	isgomock struct{}
}

// MockMessengerMockRecorder is the mock recorder for MockMessenger.
type MockMessengerMockRecorder struct {
	mock *MockMessenger
}

// NewMockMessenger creates a new mock instance.
func NewMockMessenger(ctrl *gomock.Controller) *MockMessenger {
	mock := &MockMessenger{ctrl: ctrl}
	mock.recorder = &MockMessengerMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockMessenger) EXPECT() *MockMessengerMockRecorder {
	return m.recorder
}

// Notify mocks base method.
func (m *MockMessenger) Notify(ctx context.Context, userID string, msg auction.Message) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Notify", ctx, userID, msg)
	ret0, _ := ret[0].(error)
	return ret0
}

// Notify indicates an expected call of Notify.
func (mr *MockMessengerMockRecorder) Notify(ctx, userID, msg any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Notify", reflect.TypeOf((*MockMessenger)(nil).Notify), ctx, userID, msg)
}

// SendPublicView mocks base method.
func (m *MockMessenger) SendPublicView(ctx context.Context, view auction.View) (string, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "SendPublicView", ctx, view)
	ret0, _ := ret[0].(string)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// SendPublicView indicates an expected call of SendPublicView.
func (mr *MockMessengerMockRecorder) SendPublicView(ctx, view any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "SendPublicView", reflect.TypeOf((*MockMessenger)(nil).SendPublicView), ctx, view)
}

// UpdatePublicView mocks base method.
func (m *MockMessenger) UpdatePublicView(ctx context.Context, viewRef string, view auction.View) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "UpdatePublicView", ctx, viewRef, view)
	ret0, _ := ret[0].(error)
	return ret0
}

// UpdatePublicView indicates an expected call of UpdatePublicView.
func (mr *MockMessengerMockRecorder) UpdatePublicView(ctx, viewRef, view any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "UpdatePublicView", reflect.TypeOf((*MockMessenger)(nil).UpdatePublicView), ctx, viewRef, view)
}
