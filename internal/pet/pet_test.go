package pet

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The sync adapter and the stats endpoints both decode what the device
// encoded, so every enum that marshals to a name must parse back.
func TestSnapshotJSONRoundTrip(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	snap := Snapshot{
		State: State{
			Stage:       StageTeen,
			HealthScore: 7200,
			IsHungry:    true,
			CreatedAt:   now,
		},
		Emotion:  EmotionSad,
		Menu:     MenuHealth,
		Reaction: ReactionMedicine,
		At:       now,
	}

	data, err := json.Marshal(snap)
	require.NoError(t, err)

	var got Snapshot
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, StageTeen, got.Stage)
	assert.Equal(t, EmotionSad, got.Emotion)
	assert.Equal(t, MenuHealth, got.Menu)
	assert.Equal(t, ReactionMedicine, got.Reaction)
	assert.True(t, got.IsHungry)
}

func TestDailyRecordJSONRoundTrip(t *testing.T) {
	t.Parallel()
	rec := DailyRecord{Day: "2026-03-01", Steps: 2300, HealthScore: 7700, Activity: ActivityHigh}

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var got DailyRecord
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, rec, got)

	var bad DailyRecord
	err = json.Unmarshal([]byte(`{"activity":"hyperactive"}`), &bad)
	assert.Error(t, err)
}
