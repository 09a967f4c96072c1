package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/arcadelab/scorekeep/internal/adapters/http/api"
	service "github.com/arcadelab/scorekeep/internal/app"
	"github.com/arcadelab/scorekeep/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

// Mock implementations for testing

type mockDependencies struct {
	submitID  int64
	submitErr error
	submitted []service.Submission

	entries    []model.LeaderboardEntry
	entriesErr error

	rankEntry model.LeaderboardEntry
	rankErr   error

	history    []model.ScoreRecord
	historyErr error
}

func (m *mockDependencies) Submit(ctx context.Context, sub service.Submission) (int64, error) {
	if m.submitErr != nil {
		return 0, m.submitErr
	}
	m.submitted = append(m.submitted, sub)
	return m.submitID, nil
}

func (m *mockDependencies) GetLeaderboard(ctx context.Context, key model.LeaderboardKey, limit, offset int) ([]model.LeaderboardEntry, error) {
	if m.entriesErr != nil {
		return nil, m.entriesErr
	}
	return m.entries, nil
}

func (m *mockDependencies) GetUserRank(ctx context.Context, key model.LeaderboardKey, userID string) (model.LeaderboardEntry, error) {
	if m.rankErr != nil {
		return model.LeaderboardEntry{}, m.rankErr
	}
	return m.rankEntry, nil
}

func (m *mockDependencies) GetUserHistory(ctx context.Context, userID string, key *model.LeaderboardKey, limit int) ([]model.ScoreRecord, error) {
	if m.historyErr != nil {
		return nil, m.historyErr
	}
	return m.history, nil
}

type mockStatsProvider struct {
	stats map[string]interface{}
}

func (m *mockStatsProvider) GetStats() map[string]interface{} {
	return m.stats
}

func newTestMux(deps *mockDependencies) *http.ServeMux {
	server := api.NewServer(deps, &mockStatsProvider{stats: map[string]interface{}{"started": true}})
	mux := http.NewServeMux()
	server.Register(context.Background(), mux)
	return mux
}

func TestServer_Register(t *testing.T) {
	Convey("Given a new API server", t, func() {
		mux := newTestMux(&mockDependencies{})

		Convey("When hitting the health endpoint", func() {
			req := httptest.NewRequest("GET", "/healthz", nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then it should serve metrics", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
			})
		})

		Convey("When hitting the stats endpoint", func() {
			req := httptest.NewRequest("GET", "/stats", nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then it should return the stats JSON", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, "started")
			})
		})

		Convey("When hitting any endpoint", func() {
			req := httptest.NewRequest("GET", "/stats", nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then the response carries a request id", func() {
				So(w.Header().Get("X-Request-ID"), ShouldNotBeEmpty)
			})
		})
	})
}

func TestScoresEndpoint(t *testing.T) {
	Convey("Given a score submission endpoint", t, func() {
		deps := &mockDependencies{submitID: 42}
		mux := newTestMux(deps)

		body := `{"user_id":"u1","game_mode":"Survivor","stage_id":1,"score":5000,"clear_time":120.5,"wave_reached":12,"enemies_defeated":230}`

		Convey("When posting a valid submission", func() {
			req := httptest.NewRequest("POST", "/scores", strings.NewReader(body))
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then it should respond 201 with the record id", func() {
				So(w.Code, ShouldEqual, http.StatusCreated)

				var resp struct {
					RecordID int64 `json:"record_id"`
				}
				So(json.Unmarshal(w.Body.Bytes(), &resp), ShouldBeNil)
				So(resp.RecordID, ShouldEqual, 42)
			})

			Convey("And the submission should reach the service intact", func() {
				So(len(deps.submitted), ShouldEqual, 1)
				So(deps.submitted[0].UserID, ShouldEqual, "u1")
				So(deps.submitted[0].Score, ShouldEqual, 5000)
				So(deps.submitted[0].ClearTime, ShouldEqual, 120.5)
			})
		})

		Convey("When posting malformed JSON", func() {
			req := httptest.NewRequest("POST", "/scores", strings.NewReader("{not json"))
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then it should respond 400", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When posting without a user id", func() {
			req := httptest.NewRequest("POST", "/scores", strings.NewReader(`{"game_mode":"Survivor","stage_id":1}`))
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then it should respond 400", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When the service rejects the submission", func() {
			deps.submitErr = fmt.Errorf("%w: score must be >= 0", service.ErrValidation)
			req := httptest.NewRequest("POST", "/scores", strings.NewReader(body))
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then it should respond 400", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When the store is unavailable", func() {
			deps.submitErr = fmt.Errorf("%w: connection refused", service.ErrStoreUnavailable)
			req := httptest.NewRequest("POST", "/scores", strings.NewReader(body))
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then it should respond 503", func() {
				So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
			})
		})

		Convey("When using the wrong method", func() {
			req := httptest.NewRequest("GET", "/scores", nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then it should respond 404", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})
	})
}

func TestLeaderboardEndpoint(t *testing.T) {
	Convey("Given a leaderboard endpoint", t, func() {
		now := time.Now().UTC()
		deps := &mockDependencies{
			entries: []model.LeaderboardEntry{
				{Rank: 1, UserID: "u2", UserName: "Haruto", Score: 8000, ClearTime: 90, RecordedAt: now},
				{Rank: 2, UserID: "u3", UserName: "Mei", Score: 5000, ClearTime: 100, RecordedAt: now},
			},
		}
		mux := newTestMux(deps)

		Convey("When requesting a page", func() {
			req := httptest.NewRequest("GET", "/leaderboard?game_mode=Survivor&stage_id=1&limit=10", nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then it should return the entries", func() {
				So(w.Code, ShouldEqual, http.StatusOK)

				var entries []model.LeaderboardEntry
				So(json.Unmarshal(w.Body.Bytes(), &entries), ShouldBeNil)
				So(len(entries), ShouldEqual, 2)
				So(entries[0].UserID, ShouldEqual, "u2")
				So(entries[0].Rank, ShouldEqual, 1)
			})
		})

		Convey("When omitting game_mode", func() {
			req := httptest.NewRequest("GET", "/leaderboard?stage_id=1", nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then it should respond 400", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When stage_id is not a number", func() {
			req := httptest.NewRequest("GET", "/leaderboard?game_mode=Survivor&stage_id=first", nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then it should respond 400", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When the limit is negative", func() {
			req := httptest.NewRequest("GET", "/leaderboard?game_mode=Survivor&stage_id=1&limit=-1", nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then it should respond 400", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When the store fallback fails too", func() {
			deps.entriesErr = fmt.Errorf("%w: down", service.ErrStoreUnavailable)
			req := httptest.NewRequest("GET", "/leaderboard?game_mode=Survivor&stage_id=1", nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then it should respond 503", func() {
				So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
			})
		})
	})
}

func TestRankEndpoint(t *testing.T) {
	Convey("Given a rank endpoint", t, func() {
		deps := &mockDependencies{
			rankEntry: model.LeaderboardEntry{Rank: 2, UserID: "u3", UserName: "Mei", Score: 5000, ClearTime: 100},
		}
		mux := newTestMux(deps)

		Convey("When requesting a known user", func() {
			req := httptest.NewRequest("GET", "/rank/u3?game_mode=Survivor&stage_id=1", nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then it should return the entry", func() {
				So(w.Code, ShouldEqual, http.StatusOK)

				var entry model.LeaderboardEntry
				So(json.Unmarshal(w.Body.Bytes(), &entry), ShouldBeNil)
				So(entry.Rank, ShouldEqual, 2)
				So(entry.UserID, ShouldEqual, "u3")
			})
		})

		Convey("When the user has no record", func() {
			deps.rankErr = fmt.Errorf("%w: no record", service.ErrNotFound)
			req := httptest.NewRequest("GET", "/rank/ghost?game_mode=Survivor&stage_id=1", nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then it should respond 404", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When the path has no user id", func() {
			req := httptest.NewRequest("GET", "/rank/?game_mode=Survivor&stage_id=1", nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then it should respond 400", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When the key parameters are missing", func() {
			req := httptest.NewRequest("GET", "/rank/u3", nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then it should respond 400", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})
	})
}

func TestHistoryEndpoint(t *testing.T) {
	Convey("Given a history endpoint", t, func() {
		now := time.Now().UTC()
		deps := &mockDependencies{
			history: []model.ScoreRecord{
				{ID: 3, UserID: "u1", GameMode: "Survivor", StageID: 1, Score: 2000, ClearTime: 50, RecordedAt: now},
				{ID: 1, UserID: "u1", GameMode: "Survivor", StageID: 1, Score: 1000, ClearTime: 60, RecordedAt: now.Add(-time.Minute)},
			},
		}
		mux := newTestMux(deps)

		Convey("When requesting a user's history", func() {
			req := httptest.NewRequest("GET", "/history/u1?game_mode=Survivor&stage_id=1", nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then it should return the records newest first", func() {
				So(w.Code, ShouldEqual, http.StatusOK)

				var entries []struct {
					RecordID int64 `json:"record_id"`
					Score    int64 `json:"score"`
				}
				So(json.Unmarshal(w.Body.Bytes(), &entries), ShouldBeNil)
				So(len(entries), ShouldEqual, 2)
				So(entries[0].RecordID, ShouldEqual, 3)
				So(entries[0].Score, ShouldEqual, 2000)
			})
		})

		Convey("When requesting history without key parameters", func() {
			req := httptest.NewRequest("GET", "/history/u1", nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then it should span all leaderboards and succeed", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
			})
		})

		Convey("When the path has no user id", func() {
			req := httptest.NewRequest("GET", "/history/", nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then it should respond 400", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})
	})
}
