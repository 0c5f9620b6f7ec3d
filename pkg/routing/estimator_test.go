package routing

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/sells-group/inspection-match/internal/geo"
	"github.com/sells-group/inspection-match/pkg/google"
	"github.com/sells-group/inspection-match/pkg/google/mocks"
)

var (
	origin     = geo.Coordinates{Lat: -19.9167, Lng: -43.9345}
	nearby     = geo.Coordinates{Lat: -19.9245, Lng: -43.9352}
	juizDeFora = geo.Coordinates{Lat: -21.7642, Lng: -43.3496}
)

func TestEstimate_NoProvider_Haversine(t *testing.T) {
	e := New(nil)
	assert.False(t, e.HasProvider())

	est := e.Estimate(context.Background(), origin, nearby)
	assert.Equal(t, 0.9, est.DistanceKM)
	assert.Equal(t, "900m", est.DistanceText)
	assert.Equal(t, UnknownText, est.TimeText)
	assert.Equal(t, SourceHaversine, est.Source)
	assert.Zero(t, est.DurationMinutes)
}

func TestEstimate_ProviderSuccess(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("DistanceMatrix", mock.Anything, origin, juizDeFora).Return(&google.DistanceMatrixResponse{
		Status: "OK",
		Rows: []google.Row{{Elements: []google.Element{{
			Status:   "OK",
			Distance: google.TextValue{Text: "261 km", Value: 261349},
			Duration: google.TextValue{Text: "3 horas 35 minutos", Value: 12910},
		}}}},
	}, nil)

	est := New(client).Estimate(context.Background(), origin, juizDeFora)
	assert.Equal(t, 261.3, est.DistanceKM)
	assert.Equal(t, "261 km", est.DistanceText)
	assert.Equal(t, "3 horas 35 minutos", est.TimeText)
	assert.Equal(t, 215, est.DurationMinutes)
	assert.Equal(t, SourceGoogle, est.Source)
}

func TestEstimate_RequestDenied_FallsBack(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("DistanceMatrix", mock.Anything, origin, nearby).Return(&google.DistanceMatrixResponse{
		Status:       "REQUEST_DENIED",
		ErrorMessage: "This API project is not authorized to use this API.",
	}, nil)

	est := New(client).Estimate(context.Background(), origin, nearby)
	assert.Equal(t, 0.9, est.DistanceKM)
	assert.Equal(t, "900m", est.DistanceText)
	assert.Equal(t, "N/A", est.TimeText)
	assert.Equal(t, SourceHaversine, est.Source)
}

func TestEstimate_ElementNotFound_FallsBack(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("DistanceMatrix", mock.Anything, origin, juizDeFora).Return(&google.DistanceMatrixResponse{
		Status: "OK",
		Rows:   []google.Row{{Elements: []google.Element{{Status: "ZERO_RESULTS"}}}},
	}, nil)

	est := New(client).Estimate(context.Background(), origin, juizDeFora)
	assert.Equal(t, SourceHaversine, est.Source)
	assert.Equal(t, "N/A", est.TimeText)
	assert.InDelta(t, 215, est.DistanceKM, 5)
}

func TestEstimate_EmptyRows_FallsBack(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("DistanceMatrix", mock.Anything, origin, nearby).Return(&google.DistanceMatrixResponse{Status: "OK"}, nil)

	est := New(client).Estimate(context.Background(), origin, nearby)
	assert.Equal(t, SourceHaversine, est.Source)
}

func TestEstimate_TransportError_FallsBack(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("DistanceMatrix", mock.Anything, origin, nearby).Return(nil, eris.New("google: send request: connection refused"))

	est := New(client).Estimate(context.Background(), origin, nearby)
	assert.Equal(t, SourceHaversine, est.Source)
	assert.Equal(t, "900m", est.DistanceText)
}

func TestHaversine_LongDistanceFormatting(t *testing.T) {
	est := Haversine(origin, juizDeFora)
	assert.GreaterOrEqual(t, est.DistanceKM, 0.0)
	assert.Regexp(t, `^\d+\.\d km$`, est.DistanceText)
}

func TestHaversine_SamePoint(t *testing.T) {
	est := Haversine(origin, origin)
	assert.Equal(t, 0.0, est.DistanceKM)
	assert.Equal(t, "0m", est.DistanceText)
}

func TestNewFromConfig(t *testing.T) {
	assert.False(t, NewFromConfig(Config{}).HasProvider())
	assert.True(t, NewFromConfig(Config{APIKey: "k", RateLimit: 5}).HasProvider())
}
