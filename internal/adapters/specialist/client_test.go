package specialist_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/quorumlabs/quorum/internal/adapters/specialist"
	"github.com/quorumlabs/quorum/internal/domain/model"
	"github.com/quorumlabs/quorum/internal/payment"
	. "github.com/smartystreets/goconvey/convey"
)

func bidFor(url string) model.Bid {
	return model.Bid{
		SpecialistID: "spec",
		Name:         "Spec",
		Endpoint:     url,
		Price:        1200,
		Confidence:   85,
	}
}

func request() specialist.Request {
	return specialist.Request{
		Query:    "is this token safe",
		Target:   "0xabc",
		Priority: model.PriorityMedium,
	}
}

func TestClient_Call(t *testing.T) {
	ctx := context.Background()

	Convey("Given a specialist answering a well-formed payload", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req map[string]interface{}
			_ = json.NewDecoder(r.Body).Decode(&req)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"score":     87.5,
				"analysis":  "contract looks clean",
				"riskLevel": "low",
				"flags":     []string{"verified-source"},
				"metadata":  map[string]interface{}{"model": "v2"},
			})
		}))
		defer srv.Close()
		client := specialist.NewClient()

		Convey("When the call completes", func() {
			resp, err := client.Call(ctx, bidFor(srv.URL), request())

			Convey("Then the payload is normalized into a strict response", func() {
				So(err, ShouldBeNil)
				So(resp.SpecialistID, ShouldEqual, "spec")
				So(resp.Score, ShouldEqual, 87.5)
				So(resp.RiskLevel, ShouldEqual, model.RiskLow)
				So(resp.Flags, ShouldResemble, []string{"verified-source"})
				So(resp.ExecutionTimeMs, ShouldBeGreaterThanOrEqualTo, 0)
			})

			Convey("And the committed bid price is stamped into metadata", func() {
				So(resp.Price(), ShouldEqual, 1200)
			})
		})
	})

	Convey("Given a specialist that quotes its own price", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"score":    60,
				"metadata": map[string]interface{}{"price": 900},
			})
		}))
		defer srv.Close()
		client := specialist.NewClient()

		Convey("When the call completes", func() {
			resp, err := client.Call(ctx, bidFor(srv.URL), request())

			Convey("Then the quoted price wins over the bid price", func() {
				So(err, ShouldBeNil)
				So(resp.Price(), ShouldEqual, 900)
			})

			Convey("And an absent risk level defaults to MEDIUM", func() {
				So(resp.RiskLevel, ShouldEqual, model.RiskMedium)
			})
		})
	})

	Convey("Given a specialist omitting the score", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"analysis":  "inconclusive",
				"riskLevel": "LOW",
			})
		}))
		defer srv.Close()
		client := specialist.NewClient()

		Convey("When the call completes", func() {
			_, err := client.Call(ctx, bidFor(srv.URL), request())

			Convey("Then the response is malformed, never coerced to zero", func() {
				So(errors.Is(err, specialist.ErrMalformedResponse), ShouldBeTrue)
			})
		})
	})

	Convey("Given a specialist with an out-of-range score", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"score": 250})
		}))
		defer srv.Close()
		client := specialist.NewClient()

		Convey("When the call completes", func() {
			_, err := client.Call(ctx, bidFor(srv.URL), request())

			Convey("Then the score invariant fails closed", func() {
				So(errors.Is(err, specialist.ErrMalformedResponse), ShouldBeTrue)
			})
		})
	})

	Convey("Given a specialist with an unknown risk level", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"score": 50, "riskLevel": "SEVERE"})
		}))
		defer srv.Close()
		client := specialist.NewClient()

		Convey("When the call completes", func() {
			_, err := client.Call(ctx, bidFor(srv.URL), request())

			Convey("Then the unknown level is malformed, not defaulted", func() {
				So(errors.Is(err, specialist.ErrMalformedResponse), ShouldBeTrue)
			})
		})
	})

	Convey("Given a specialist returning a server error", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer srv.Close()
		client := specialist.NewClient()

		Convey("When the call completes", func() {
			_, err := client.Call(ctx, bidFor(srv.URL), request())

			Convey("Then the failure is typed as upstream", func() {
				So(errors.Is(err, specialist.ErrUpstream), ShouldBeTrue)
			})
		})
	})

	Convey("Given a specialist slower than the call timeout", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-time.After(2 * time.Second):
			case <-r.Context().Done():
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"score": 50})
		}))
		defer srv.Close()
		client := specialist.NewClient(specialist.WithTimeout(50 * time.Millisecond))

		Convey("When the deadline expires", func() {
			_, err := client.Call(ctx, bidFor(srv.URL), request())

			Convey("Then the failure is typed as a timeout", func() {
				So(errors.Is(err, specialist.ErrTimeout), ShouldBeTrue)
			})
		})
	})

	Convey("Given an unreachable endpoint", t, func() {
		client := specialist.NewClient()

		Convey("When the call is attempted", func() {
			_, err := client.Call(ctx, bidFor("http://127.0.0.1:1/analyze"), request())

			Convey("Then the failure is typed as network", func() {
				So(errors.Is(err, specialist.ErrNetwork), ShouldBeTrue)
			})
		})
	})
}

func TestClient_PaidMode(t *testing.T) {
	ctx := context.Background()

	Convey("Given paid mode without a settlement capability", t, func() {
		client := specialist.NewClient(specialist.WithPaymentMode(specialist.PaymentPaid))

		Convey("When a call is attempted", func() {
			_, err := client.Call(ctx, bidFor("http://127.0.0.1:1/analyze"), request())

			Convey("Then it degrades to an explicit error, never free mode", func() {
				So(errors.Is(err, specialist.ErrPaymentUnavailable), ShouldBeTrue)
			})
		})
	})

	Convey("Given paid mode with a settler and a confirming specialist", t, func() {
		var gotProof string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotProof = r.Header.Get("X-Payment")
			w.Header().Set("X-Payment-Receipt", "rcpt-42")
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"score": 70})
		}))
		defer srv.Close()
		client := specialist.NewClient(
			specialist.WithPaymentMode(specialist.PaymentPaid),
			specialist.WithSettler(payment.NoopSettler{}),
		)

		Convey("When the call completes", func() {
			resp, err := client.Call(ctx, bidFor(srv.URL), request())

			Convey("Then settlement proof travels with the request", func() {
				So(err, ShouldBeNil)
				So(gotProof, ShouldEqual, "dev-settlement")
			})

			Convey("And the receipt reference lands in metadata", func() {
				So(resp.Metadata["settlementReference"], ShouldEqual, "rcpt-42")
			})
		})
	})
}
