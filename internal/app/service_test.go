package app_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/quorumlabs/quorum/internal/adapters/registry"
	"github.com/quorumlabs/quorum/internal/adapters/specialist"
	"github.com/quorumlabs/quorum/internal/app"
	"github.com/quorumlabs/quorum/internal/domain/model"
	"github.com/quorumlabs/quorum/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

// fakeCaller answers from a canned outcome table keyed by specialist id.
type fakeCaller struct {
	scores map[string]float64
	risks  map[string]model.RiskLevel
	errs   map[string]error
}

func (f *fakeCaller) Call(_ context.Context, bid model.Bid, _ specialist.Request) (model.SpecialistResponse, error) {
	if err, ok := f.errs[bid.SpecialistID]; ok {
		return model.SpecialistResponse{}, err
	}
	risk := f.risks[bid.SpecialistID]
	if risk == "" {
		risk = model.RiskLow
	}
	return model.SpecialistResponse{
		SpecialistID:   bid.SpecialistID,
		SpecialistName: bid.Name,
		Score:          f.scores[bid.SpecialistID],
		RiskLevel:      risk,
		Flags:          []string{},
		Metadata:       map[string]interface{}{"price": bid.Price},
	}, nil
}

func seeds(n int) []registry.Seed {
	out := make([]registry.Seed, n)
	for i := range out {
		out[i] = registry.Seed{
			ID:                fmt.Sprintf("spec-%d", i),
			Name:              fmt.Sprintf("Specialist %d", i),
			Category:          model.CategoryGeneralist,
			Endpoint:          fmt.Sprintf("http://spec-%d/analyze", i),
			Price:             1000,
			InitialReputation: 80,
			Active:            true,
		}
	}
	return out
}

func validRequest() model.AnalysisRequest {
	return model.AnalysisRequest{
		Query:       "is this token safe",
		Target:      "0xabc",
		Budget:      5000,
		RequesterID: "user-1",
	}
}

func startBroker(t *testing.T, caller specialist.Caller, opts ...app.Option) *app.Service {
	t.Helper()
	svc := app.New(append(opts, app.WithCaller(caller))...)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start broker: %v", err)
	}
	return svc
}

func TestService_Dispatch(t *testing.T) {
	ctx := context.Background()

	Convey("Given a broker with three healthy specialists", t, func() {
		caller := &fakeCaller{scores: map[string]float64{
			"spec-0": 82, "spec-1": 78, "spec-2": 80,
		}}
		svc := startBroker(t, caller,
			app.WithSpecialists(seeds(3)),
			app.WithPlatformFeePercent(2.5),
		)

		Convey("When a valid request is dispatched", func() {
			result, err := svc.Dispatch(ctx, validRequest())

			Convey("Then every eligible specialist responds", func() {
				So(err, ShouldBeNil)
				So(result.RespondentCount, ShouldEqual, 3)
				So(result.EligibleCount, ShouldEqual, 3)
				So(result.RequestID, ShouldNotBeEmpty)
			})

			Convey("And the consensus aggregates their scores", func() {
				So(result.Consensus.AverageScore, ShouldEqual, 80)
				So(result.Consensus.ConsensusStrength, ShouldBeGreaterThan, 0.99)
				So(result.Consensus.TotalCost, ShouldEqual, 3000)
			})

			Convey("And the gross cost carries the platform fee", func() {
				So(result.GrossCost, ShouldEqual, 3075)
			})

			Convey("And every specialist gains a successful outcome", func() {
				for _, s := range svc.Specialists(ctx) {
					So(s.TotalTasks, ShouldEqual, 1)
					So(s.SuccessRate, ShouldEqual, 1.0)
				}
			})
		})
	})

	Convey("Given a broker with five specialists where two time out", t, func() {
		caller := &fakeCaller{
			scores: map[string]float64{"spec-0": 75, "spec-1": 70, "spec-2": 65},
			errs: map[string]error{
				"spec-3": fmt.Errorf("calling spec-3: %w", specialist.ErrTimeout),
				"spec-4": fmt.Errorf("calling spec-4: %w", specialist.ErrTimeout),
			},
		}
		svc := startBroker(t, caller, app.WithSpecialists(seeds(5)))

		Convey("When the request is dispatched", func() {
			result, err := svc.Dispatch(ctx, validRequest())

			Convey("Then partial failure still produces a consensus", func() {
				So(err, ShouldBeNil)
				So(result.RespondentCount, ShouldEqual, 3)
				So(result.EligibleCount, ShouldEqual, 5)
				So(len(result.Consensus.Responses), ShouldEqual, 3)
			})

			Convey("And each timed-out specialist records exactly one failure", func() {
				for _, id := range []string{"spec-3", "spec-4"} {
					s, err := svc.SpecialistByID(ctx, id)
					So(err, ShouldBeNil)
					So(s.TotalTasks, ShouldEqual, 1)
					So(s.SuccessRate, ShouldEqual, 0.0)
				}
			})

			Convey("And responses keep the order calls were issued in", func() {
				So(result.Consensus.Responses[0].SpecialistID, ShouldEqual, "spec-0")
				So(result.Consensus.Responses[1].SpecialistID, ShouldEqual, "spec-1")
				So(result.Consensus.Responses[2].SpecialistID, ShouldEqual, "spec-2")
			})
		})
	})

	Convey("Given a broker whose specialists all fail", t, func() {
		caller := &fakeCaller{errs: map[string]error{
			"spec-0": specialist.ErrNetwork,
			"spec-1": specialist.ErrUpstream,
			"spec-2": specialist.ErrTimeout,
		}}
		svc := startBroker(t, caller, app.WithSpecialists(seeds(3)))

		Convey("When the request is dispatched", func() {
			_, err := svc.Dispatch(ctx, validRequest())

			Convey("Then the request fails with the all-failed kind", func() {
				So(errors.Is(err, app.ErrAllSpecialistsFailed), ShouldBeTrue)
			})

			Convey("And the error guides the caller toward the target id", func() {
				So(err.Error(), ShouldContainSubstring, "target identifier")
			})

			Convey("And every specialist takes a reputation penalty", func() {
				for _, s := range svc.Specialists(ctx) {
					So(s.TotalTasks, ShouldEqual, 1)
					So(s.SuccessRate, ShouldEqual, 0.0)
				}
			})
		})
	})
}

func TestService_DispatchRejections(t *testing.T) {
	ctx := context.Background()

	Convey("Given a broker with a seeded catalog", t, func() {
		caller := &fakeCaller{scores: map[string]float64{"spec-0": 80}}
		svc := startBroker(t, caller, app.WithSpecialists(seeds(1)), app.WithMaxBudget(10_000))

		Convey("When the query is empty", func() {
			req := validRequest()
			req.Query = "   "
			_, err := svc.Dispatch(ctx, req)

			Convey("Then validation rejects it before any call", func() {
				So(errors.Is(err, app.ErrValidation), ShouldBeTrue)
				s, _ := svc.SpecialistByID(ctx, "spec-0")
				So(s.TotalTasks, ShouldEqual, 0)
			})
		})

		Convey("When the budget is not positive", func() {
			req := validRequest()
			req.Budget = 0
			_, err := svc.Dispatch(ctx, req)

			So(errors.Is(err, app.ErrValidation), ShouldBeTrue)
		})

		Convey("When the budget exceeds the configured maximum", func() {
			req := validRequest()
			req.Budget = 50_000
			_, err := svc.Dispatch(ctx, req)

			So(errors.Is(err, app.ErrValidation), ShouldBeTrue)
		})

		Convey("When the requester id is missing", func() {
			req := validRequest()
			req.RequesterID = ""
			_, err := svc.Dispatch(ctx, req)

			So(errors.Is(err, app.ErrValidation), ShouldBeTrue)
		})

		Convey("When the budget fits no specialist", func() {
			req := validRequest()
			req.Budget = 500
			_, err := svc.Dispatch(ctx, req)

			Convey("Then the budget kind carries the minimum viable price", func() {
				So(errors.Is(err, app.ErrBudgetInsufficient), ShouldBeTrue)
				var budgetErr *app.BudgetError
				So(errors.As(err, &budgetErr), ShouldBeTrue)
				So(budgetErr.MinBudget, ShouldEqual, 1000)
			})
		})
	})

	Convey("Given a broker that was never started", t, func() {
		svc := app.New(app.WithCaller(&fakeCaller{}))

		Convey("When a request is dispatched", func() {
			_, err := svc.Dispatch(ctx, validRequest())

			So(errors.Is(err, app.ErrNotStarted), ShouldBeTrue)
		})
	})
}
