package registry_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/quorumlabs/quorum/internal/adapters/registry"
	"github.com/quorumlabs/quorum/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func seedCatalog() []registry.Seed {
	return []registry.Seed{
		{ID: "contract", Name: "Contract Analyzer", Category: model.CategoryContract, Endpoint: "http://c/analyze", Price: 1500, InitialReputation: 85, Active: true},
		{ID: "sentiment", Name: "Sentiment Analyzer", Category: model.CategorySentiment, Endpoint: "http://s/analyze", Price: 1000, InitialReputation: 80, Active: true},
		{ID: "market", Name: "Market Analyzer", Category: model.CategoryMarket, Endpoint: "http://m/analyze", Price: 2000, InitialReputation: 90, Active: true},
		{ID: "dormant", Name: "Dormant Analyzer", Category: model.CategoryGeneralist, Endpoint: "http://d/analyze", Price: 100, InitialReputation: 50, Active: false},
	}
}

func TestRegistry_Bids(t *testing.T) {
	ctx := context.Background()

	Convey("Given a registry seeded with a mixed catalog", t, func() {
		reg := registry.New(seedCatalog())

		Convey("When bids are requested with a generous budget", func() {
			bids := reg.Bids(ctx, 5000)

			Convey("Then only active specialists bid, sorted by confidence", func() {
				So(len(bids), ShouldEqual, 3)
				So(bids[0].SpecialistID, ShouldEqual, "market")
				So(bids[1].SpecialistID, ShouldEqual, "contract")
				So(bids[2].SpecialistID, ShouldEqual, "sentiment")
			})

			Convey("And each bid mirrors current reputation and price", func() {
				So(bids[0].Confidence, ShouldEqual, 90)
				So(bids[0].Price, ShouldEqual, 2000)
				So(bids[0].Endpoint, ShouldEqual, "http://m/analyze")
			})
		})

		Convey("When the budget excludes the most expensive specialist", func() {
			bids := reg.Bids(ctx, 1500)

			Convey("Then only affordable specialists bid", func() {
				So(len(bids), ShouldEqual, 2)
				So(bids[0].SpecialistID, ShouldEqual, "contract")
				So(bids[1].SpecialistID, ShouldEqual, "sentiment")
			})
		})

		Convey("When the budget is below every active price", func() {
			bids := reg.Bids(ctx, 500)

			Convey("Then the bid list is empty, never a cheaper substitute", func() {
				So(bids, ShouldBeEmpty)
			})
		})

		Convey("When two specialists share a reputation", func() {
			reg := registry.New([]registry.Seed{
				{ID: "first", Endpoint: "http://a", Price: 100, InitialReputation: 80, Active: true},
				{ID: "second", Endpoint: "http://b", Price: 100, InitialReputation: 80, Active: true},
			})
			bids := reg.Bids(ctx, 100)

			Convey("Then ties keep registration order", func() {
				So(len(bids), ShouldEqual, 2)
				So(bids[0].SpecialistID, ShouldEqual, "first")
				So(bids[1].SpecialistID, ShouldEqual, "second")
			})
		})
	})
}

func TestRegistry_MinPrice(t *testing.T) {
	ctx := context.Background()

	Convey("Given a registry with an inactive cheapest specialist", t, func() {
		reg := registry.New(seedCatalog())

		Convey("When the minimum price is requested", func() {
			min, ok := reg.MinPrice(ctx)

			Convey("Then it reflects the cheapest active specialist", func() {
				So(ok, ShouldBeTrue)
				So(min, ShouldEqual, 1000)
			})
		})
	})

	Convey("Given an empty registry", t, func() {
		reg := registry.New(nil)

		Convey("When the minimum price is requested", func() {
			_, ok := reg.MinPrice(ctx)

			Convey("Then no guidance is available", func() {
				So(ok, ShouldBeFalse)
			})
		})
	})
}

func TestRegistry_RecordOutcome(t *testing.T) {
	ctx := context.Background()

	Convey("Given a freshly seeded specialist", t, func() {
		reg := registry.New([]registry.Seed{
			{ID: "spec", Endpoint: "http://spec", Price: 100, InitialReputation: 60, Active: true},
		})

		Convey("When every outcome is a success", func() {
			for i := 0; i < 10; i++ {
				reg.RecordOutcome(ctx, "spec", true, 100)
			}
			s, err := reg.ByID(ctx, "spec")

			Convey("Then the success rate converges to exactly 1.0", func() {
				So(err, ShouldBeNil)
				So(s.SuccessRate, ShouldEqual, 1.0)
				So(s.Reputation, ShouldEqual, 100)
				So(s.TotalTasks, ShouldEqual, 10)
			})
		})

		Convey("When outcomes alternate success and failure", func() {
			reg.RecordOutcome(ctx, "spec", true, 100)
			reg.RecordOutcome(ctx, "spec", false, 300)
			reg.RecordOutcome(ctx, "spec", true, 200)
			reg.RecordOutcome(ctx, "spec", false, 400)
			s, err := reg.ByID(ctx, "spec")

			Convey("Then stats are the running means over the history", func() {
				So(err, ShouldBeNil)
				So(s.SuccessRate, ShouldAlmostEqual, 0.5, 1e-9)
				So(s.Reputation, ShouldEqual, 50)
				So(s.AvgResponseTimeMs, ShouldEqual, 250)
				So(s.TotalTasks, ShouldEqual, 4)
			})
		})

		Convey("When an unknown id is recorded", func() {
			reg.RecordOutcome(ctx, "ghost", true, 100)
			s, err := reg.ByID(ctx, "spec")

			Convey("Then nothing changes and nothing panics", func() {
				So(err, ShouldBeNil)
				So(s.TotalTasks, ShouldEqual, 0)
			})
		})

		Convey("When many goroutines record outcomes for the same specialist", func() {
			const updates = 200
			var wg sync.WaitGroup
			for i := 0; i < updates; i++ {
				wg.Add(1)
				go func(success bool) {
					defer wg.Done()
					reg.RecordOutcome(ctx, "spec", success, 100)
				}(i%2 == 0)
			}
			wg.Wait()
			s, err := reg.ByID(ctx, "spec")

			Convey("Then no update is lost to a stale read", func() {
				So(err, ShouldBeNil)
				So(s.TotalTasks, ShouldEqual, updates)
				So(s.SuccessRate, ShouldAlmostEqual, 0.5, 1e-6)
			})
		})
	})
}

func TestRegistry_Lookup(t *testing.T) {
	ctx := context.Background()

	Convey("Given a seeded registry", t, func() {
		reg := registry.New(seedCatalog())

		Convey("When listing active specialists", func() {
			active := reg.ActiveSpecialists(ctx)

			Convey("Then they come back in registration order", func() {
				So(len(active), ShouldEqual, 3)
				So(active[0].ID, ShouldEqual, "contract")
				So(active[1].ID, ShouldEqual, "sentiment")
				So(active[2].ID, ShouldEqual, "market")
			})
		})

		Convey("When looking up an unknown id", func() {
			_, err := reg.ByID(ctx, "ghost")

			Convey("Then the not-found kind is returned", func() {
				So(errors.Is(err, registry.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When counting the catalog", func() {
			Convey("Then inactive specialists still count", func() {
				So(reg.Count(ctx), ShouldEqual, 4)
			})
		})
	})
}
