// Package mocks provides test doubles for the google client.
package mocks

import (
	"context"

	geo "github.com/sells-group/inspection-match/internal/geo"
	google "github.com/sells-group/inspection-match/pkg/google"
	mock "github.com/stretchr/testify/mock"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
}

// DistanceMatrix provides a mock function with given fields: ctx, origin, destination
func (_m *MockClient) DistanceMatrix(ctx context.Context, origin geo.Coordinates, destination geo.Coordinates) (*google.DistanceMatrixResponse, error) {
	ret := _m.Called(ctx, origin, destination)

	if len(ret) == 0 {
		panic("no return value specified for DistanceMatrix")
	}

	var r0 *google.DistanceMatrixResponse
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, geo.Coordinates, geo.Coordinates) (*google.DistanceMatrixResponse, error)); ok {
		return rf(ctx, origin, destination)
	}
	if rf, ok := ret.Get(0).(func(context.Context, geo.Coordinates, geo.Coordinates) *google.DistanceMatrixResponse); ok {
		r0 = rf(ctx, origin, destination)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*google.DistanceMatrixResponse)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, geo.Coordinates, geo.Coordinates) error); ok {
		r1 = rf(ctx, origin, destination)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockClient creates a new instance of MockClient. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
// The first argument is typically a *testing.T value.
func NewMockClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockClient {
	m := &MockClient{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
