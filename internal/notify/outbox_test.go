package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-scheduling/internal/calendar"
	"github.com/hackgods/clinic-scheduling/internal/waitlist"
)

type payloadArg struct {
	got *VacancyMatched
}

func (a payloadArg) Match(v any) bool {
	data, ok := v.([]byte)
	if !ok {
		return false
	}
	return json.Unmarshal(data, a.got) == nil
}

func TestOutboxPublisher_NotifyMatches(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	pub := NewOutboxPublisher(mock, zerolog.Nop())
	org := uuid.New()
	expires := time.Date(2024, 3, 12, 9, 0, 0, 0, time.UTC)
	first := waitlist.Entry{ID: uuid.New(), PatientID: uuid.New(), Offer: &waitlist.Offer{ExpiresAt: expires}}
	second := waitlist.Entry{ID: uuid.New(), PatientID: uuid.New()}

	var got VacancyMatched
	mock.ExpectExec("INSERT INTO outbox").
		WithArgs(pgxmock.AnyArg(), org, EventVacancyMatched, payloadArg{got: &got}).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = pub.NotifyMatches(context.Background(), waitlist.Vacancy{
		OrgID: org,
		Date:  calendar.MustParseDate("2024-03-11"),
		Time:  calendar.MustParseClock("09:00"),
	}, []waitlist.Match{{Entry: first, Score: 60}, {Entry: second, Score: 40}})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, "2024-03-11", got.Date)
	assert.Equal(t, "09:00", got.Time)
	require.Len(t, got.Candidates, 2)
	assert.Equal(t, 1, got.Candidates[0].Rank)
	assert.Equal(t, first.ID, got.Candidates[0].EntryID)
	assert.Equal(t, 60, got.Candidates[0].Score)
	assert.True(t, expires.Equal(got.Candidates[0].ExpiresAt))
	assert.Equal(t, 2, got.Candidates[1].Rank)
}

func TestOutboxPublisher_InsertError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	pub := NewOutboxPublisher(mock, zerolog.Nop())
	mock.ExpectExec("INSERT INTO outbox").WillReturnError(errors.New("disk full"))

	_, err = pub.Insert(context.Background(), uuid.New(), "x", map[string]string{})
	assert.ErrorContains(t, err, "insert outbox")
	require.NoError(t, mock.ExpectationsWereMet())
}
