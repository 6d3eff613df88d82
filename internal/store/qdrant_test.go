package store

import (
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validPoint(id string) IndexedPoint {
	vec := make([]float32, VectorSize)
	for i := range vec {
		vec[i] = 0.1
	}
	return IndexedPoint{
		PointID: id,
		Vector:  vec,
		Payload: PointPayload{Text: "text", Source: "source", OriginalID: id},
	}
}

func TestValidatePoints_OK(t *testing.T) {
	points := []IndexedPoint{validPoint("p1"), validPoint("p2")}
	assert.NoError(t, ValidatePoints(points))
}

func TestValidatePoints_WrongLengthFailsBatch(t *testing.T) {
	short := validPoint("p2")
	short.Vector = short.Vector[:767]
	points := []IndexedPoint{validPoint("p1"), short}

	err := ValidatePoints(points)
	require.Error(t, err)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Error(), "768")
	assert.Contains(t, ve.Error(), "(p2, 767)")
}

func TestValidatePoints_EmptyVector(t *testing.T) {
	empty := validPoint("p1")
	empty.Vector = nil

	err := ValidatePoints([]IndexedPoint{empty})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Error(), "p1")
}

func TestValidatePoints_NaN(t *testing.T) {
	bad := validPoint("p1")
	bad.Vector[42] = float32(math.NaN())

	err := ValidatePoints([]IndexedPoint{validPoint("p0"), bad})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Error(), "p1")
}

func TestValidatePoints_Inf(t *testing.T) {
	bad := validPoint("p1")
	bad.Vector[0] = float32(math.Inf(1))

	err := ValidatePoints([]IndexedPoint{bad})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
}

func TestValidatePoints_CapsInvalidIDsAtTen(t *testing.T) {
	var points []IndexedPoint
	for i := 0; i < 12; i++ {
		p := validPoint(fmt.Sprintf("bad-%02d", i))
		p.Vector = nil
		points = append(points, p)
	}

	err := ValidatePoints(points)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "and more")
	assert.Contains(t, err.Error(), "bad-09")
	assert.NotContains(t, err.Error(), "bad-10")
}

func TestValidatePoints_CapsMismatchesAtFive(t *testing.T) {
	var points []IndexedPoint
	for i := 0; i < 7; i++ {
		p := validPoint(fmt.Sprintf("short-%d", i))
		p.Vector = p.Vector[:100]
		points = append(points, p)
	}

	err := ValidatePoints(points)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "short-4")
	assert.NotContains(t, err.Error(), "short-5")
}

func TestValidatePoints_FiniteCheckRunsBeforeLengthCheck(t *testing.T) {
	// A batch with both defects reports the non-finite points first.
	nan := validPoint("nan-point")
	nan.Vector[0] = float32(math.NaN())
	short := validPoint("short-point")
	short.Vector = short.Vector[:10]

	err := ValidatePoints([]IndexedPoint{nan, short})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nan-point")
	assert.NotContains(t, err.Error(), "short-point")
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("x", 500)
	assert.Len(t, truncate(long, 200), 200)
	assert.Equal(t, "abc", truncate("abc", 200))
}

func TestIndexErrorMessage(t *testing.T) {
	err := &IndexError{Op: "upsert", Detail: "rpc error: code = Unavailable"}
	assert.Contains(t, err.Error(), "upsert")
	assert.Contains(t, err.Error(), "Unavailable")
}
