package api

import (
	"net/http"

	"github.com/arcana-app/arcana/internal/app/engagement"
)

// ─── Engagement API ─────────────────────────────────────────────────────────
// Read-only views of the caller's reward progress.

// EngagementAPI holds the reward services for HTTP handlers.
type EngagementAPI struct {
	Streak      *engagement.StreakService
	Achievement *engagement.AchievementService
	Challenge   *engagement.ChallengeService
	Golden      *engagement.GoldenService
}

// NewEngagementAPI exposes the services of an engine.
func NewEngagementAPI(e *engagement.Engine) *EngagementAPI {
	return &EngagementAPI{
		Streak:      e.Streak,
		Achievement: e.Achievement,
		Challenge:   e.Challenge,
		Golden:      e.Golden,
	}
}

// HandleStreak returns current streak info.
// GET /api/engagement/streak
func (e *EngagementAPI) HandleStreak(w http.ResponseWriter, r *http.Request) {
	if e.Streak == nil {
		writeError(w, http.StatusServiceUnavailable, "streak service not available")
		return
	}
	st, err := e.Streak.State(r.Context(), AccountID(r.Context()))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleAchievements returns every achievement with the caller's progress.
// GET /api/engagement/achievements
func (e *EngagementAPI) HandleAchievements(w http.ResponseWriter, r *http.Request) {
	if e.Achievement == nil {
		writeError(w, http.StatusServiceUnavailable, "achievement service not available")
		return
	}
	st, err := e.Achievement.State(r.Context(), AccountID(r.Context()))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleChallenges returns this period's weekly and monthly challenges.
// GET /api/engagement/challenges
func (e *EngagementAPI) HandleChallenges(w http.ResponseWriter, r *http.Request) {
	if e.Challenge == nil {
		writeError(w, http.StatusServiceUnavailable, "challenge service not available")
		return
	}
	st, err := e.Challenge.State(r.Context(), AccountID(r.Context()))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleGolden returns the caller's golden card collection.
// GET /api/engagement/golden
func (e *EngagementAPI) HandleGolden(w http.ResponseWriter, r *http.Request) {
	if e.Golden == nil {
		writeError(w, http.StatusServiceUnavailable, "golden card service not available")
		return
	}
	st, err := e.Golden.State(r.Context(), AccountID(r.Context()))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleSummary returns a combined dashboard payload.
// GET /api/engagement/summary
func (e *EngagementAPI) HandleSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	accountID := AccountID(ctx)
	summary := map[string]interface{}{}

	if e.Streak != nil {
		st, err := e.Streak.State(ctx, accountID)
		if err != nil {
			writeFailure(w, r, err)
			return
		}
		summary["streak"] = map[string]interface{}{
			"current": st.Current,
			"longest": st.Longest,
			"alive":   st.Alive,
			"next":    st.Next,
		}
	}

	if e.Achievement != nil {
		st, err := e.Achievement.State(ctx, accountID)
		if err != nil {
			writeFailure(w, r, err)
			return
		}
		summary["achievements"] = map[string]interface{}{
			"unlocked": st.UnlockedCount,
			"total":    st.TotalCount,
		}
	}

	if e.Challenge != nil {
		st, err := e.Challenge.State(ctx, accountID)
		if err != nil {
			writeFailure(w, r, err)
			return
		}
		done, total := 0, 0
		for _, list := range [][]engagement.ChallengeStatus{st.Weekly, st.Monthly} {
			for _, c := range list {
				total++
				if c.Completed {
					done++
				}
			}
		}
		summary["challenges"] = map[string]interface{}{
			"completed":        done,
			"total":            total,
			"reset_countdowns": st.ResetCountdowns,
		}
	}

	if e.Golden != nil {
		st, err := e.Golden.State(ctx, accountID)
		if err != nil {
			writeFailure(w, r, err)
			return
		}
		summary["golden"] = map[string]interface{}{
			"found":     st.Found,
			"distinct":  st.Distinct,
			"deck_size": st.DeckSize,
		}
	}

	writeJSON(w, http.StatusOK, summary)
}
