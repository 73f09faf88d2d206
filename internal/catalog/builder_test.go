package catalog_test

import (
	"bytes"
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/text/language"

	"github.com/0xADE/ade-appsel/internal/catalog"
	"github.com/0xADE/ade-appsel/internal/testutil"
)

const (
	owner catalog.ProfileID = 0
	work  catalog.ProfileID = 10
)

var _ = Describe("Builder", func() {
	var (
		platform *testutil.Platform
		store    *testutil.Store
		builder  *catalog.Builder
		now      time.Time
		ctx      context.Context
	)

	labels := func(records []catalog.AppRecord) []string {
		out := make([]string, 0, len(records))
		for _, r := range records {
			out = append(out, r.Label)
		}
		return out
	}

	BeforeEach(func() {
		ctx = context.Background()
		now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		platform = testutil.NewPlatform(owner, work)
		store = testutil.NewStore()
		Expect(store.SetHiddenAppsMigrated(true)).To(Succeed())
	})

	JustBeforeEach(func() {
		builder = catalog.NewBuilder(platform, store, catalog.NewCollator(language.English), catalog.Options{
			Self:    "app.olauncher",
			Current: owner,
			Workers: 2,
			Now:     func() time.Time { return now },
		})
	})

	Context("with apps in two profiles", func() {
		BeforeEach(func() {
			platform.
				Install(owner, catalog.Activity{Package: "com.zed", Component: "com.zed.Main", Label: "zed"}).
				Install(owner, catalog.Activity{Package: "com.ecran", Component: "com.ecran.Main", Label: "Écran"}).
				Install(owner, catalog.Activity{Package: "com.beta", Component: "com.beta.Main", Label: "beta"}).
				Install(owner, catalog.Activity{Package: "app.olauncher", Component: "app.olauncher.Main", Label: "Launcher"}).
				Install(work, catalog.Activity{Package: "com.alpha", Component: "com.alpha.Main", Label: "Alpha"}).
				Install(work, catalog.Activity{Package: "com.beta", Component: "com.beta.Main", Label: "beta"}).
				Install(work, catalog.Activity{Package: "app.olauncher", Component: "app.olauncher.Main", Label: "Launcher"})
		})

		It("should sort case-insensitively by collation", func() {
			records := builder.Build(ctx, catalog.Include{Regular: true})
			Expect(labels(records)).To(Equal([]string{"Alpha", "beta", "beta", "Écran", "zed"}))
			for i := 1; i < len(records); i++ {
				Expect(bytes.Compare(records[i-1].SortKey, records[i].SortKey)).To(BeNumerically("<=", 0))
			}
		})

		It("should never list the host package", func() {
			for _, r := range builder.Build(ctx, catalog.Include{Regular: true, Hidden: true}) {
				Expect(r.Package).NotTo(Equal("app.olauncher"))
			}
		})

		It("should keep the same package once per profile", func() {
			records := builder.Build(ctx, catalog.Include{Regular: true})
			seen := map[catalog.Identity]bool{}
			for _, r := range records {
				Expect(seen[r.Key()]).To(BeFalse())
				seen[r.Key()] = true
			}
			Expect(seen).To(HaveKey(catalog.Identity{Package: "com.beta", Profile: owner}))
			Expect(seen).To(HaveKey(catalog.Identity{Package: "com.beta", Profile: work}))
		})

		It("should not append the padding record", func() {
			for _, r := range builder.Build(ctx, catalog.Include{Regular: true}) {
				Expect(r.IsSentinel()).To(BeFalse())
			}
		})
	})

	Context("when a package has several launchable activities", func() {
		BeforeEach(func() {
			platform.
				Install(owner, catalog.Activity{Package: "com.cam", Component: "com.cam.Photo", Label: "Camera"}).
				Install(owner, catalog.Activity{Package: "com.cam", Component: "com.cam.Video", Label: "Video"})
		})

		It("should keep the first activity reported", func() {
			records := builder.Build(ctx, catalog.Include{Regular: true})
			Expect(records).To(HaveLen(1))
			Expect(records[0].Component).To(Equal("com.cam.Photo"))
		})
	})

	Context("with rename labels", func() {
		BeforeEach(func() {
			platform.
				Install(owner, catalog.Activity{Package: "com.alpha", Label: "Alpha"}).
				Install(owner, catalog.Activity{Package: "com.zulu", Label: "Zulu"}).
				Install(work, catalog.Activity{Package: "com.zulu", Label: "Zulu"})
			Expect(store.SetRenameLabel("com.zulu", "Aardvark")).To(Succeed())
		})

		It("should show the rename label in every profile", func() {
			records := builder.Build(ctx, catalog.Include{Regular: true})
			Expect(labels(records)).To(Equal([]string{"Alpha", "Aardvark", "Aardvark"}))
		})

		It("should fall back to the platform label when the rename is blank", func() {
			Expect(store.SetRenameLabel("com.zulu", "   ")).To(Succeed())
			records := builder.Build(ctx, catalog.Include{Regular: true})
			Expect(labels(records)).To(Equal([]string{"Alpha", "Zulu", "Zulu"}))
		})
	})

	Context("with hidden apps", func() {
		BeforeEach(func() {
			platform.
				Install(owner, catalog.Activity{Package: "com.alpha", Label: "Alpha"}).
				Install(owner, catalog.Activity{Package: "com.beta", Label: "Beta"}).
				Install(work, catalog.Activity{Package: "com.beta", Label: "Beta"})
			Expect(store.SetHiddenApps([]string{catalog.HiddenKey("com.beta", work)})).To(Succeed())
		})

		It("should partition by the composite key", func() {
			regular := builder.Build(ctx, catalog.Include{Regular: true})
			hidden := builder.Build(ctx, catalog.Include{Hidden: true})

			Expect(regular).To(HaveLen(2))
			Expect(hidden).To(HaveLen(1))
			Expect(hidden[0].Key()).To(Equal(catalog.Identity{Package: "com.beta", Profile: work}))
		})

		It("should return both partitions when asked", func() {
			Expect(builder.Build(ctx, catalog.Include{Regular: true, Hidden: true})).To(HaveLen(3))
		})

		It("should return nothing when both partitions are excluded", func() {
			Expect(builder.Build(ctx, catalog.Include{})).To(BeEmpty())
		})
	})

	Context("with legacy hidden entries", func() {
		BeforeEach(func() {
			store = testutil.NewStore("com.alpha")
			platform.Install(owner, catalog.Activity{Package: "com.alpha", Label: "Alpha"})
		})

		It("should migrate before partitioning", func() {
			hidden := builder.Build(ctx, catalog.Include{Hidden: true})
			Expect(hidden).To(HaveLen(1))
			Expect(store.HiddenApps()).To(Equal([]string{"com.alpha|UserHandle{0}"}))
			Expect(store.HiddenAppsMigrated()).To(BeTrue())
		})
	})

	Context("with install times", func() {
		BeforeEach(func() {
			platform.
				Install(owner, catalog.Activity{Package: "com.new", Label: "New", FirstInstall: now.Add(-59 * time.Minute)}).
				Install(owner, catalog.Activity{Package: "com.old", Label: "Old", FirstInstall: now.Add(-2 * time.Hour)}).
				Install(owner, catalog.Activity{Package: "com.unknown", Label: "Unknown"})
		})

		It("should flag apps installed within the last hour", func() {
			recent := map[string]bool{}
			for _, r := range builder.Build(ctx, catalog.Include{Regular: true}) {
				recent[r.Package] = r.RecentlyInstalled
			}
			Expect(recent).To(Equal(map[string]bool{"com.new": true, "com.old": false, "com.unknown": false}))
		})
	})

	Context("when enumeration fails", func() {
		BeforeEach(func() {
			platform.
				Install(owner, catalog.Activity{Package: "com.alpha", Label: "Alpha"}).
				Install(work, catalog.Activity{Package: "com.beta", Label: "Beta"})
		})

		It("should omit a failing profile", func() {
			platform.Fail(work, errors.New("profile locked"))
			records := builder.Build(ctx, catalog.Include{Regular: true})
			Expect(labels(records)).To(Equal([]string{"Alpha"}))
		})

		It("should omit a panicking profile", func() {
			platform.Panic(owner)
			records := builder.Build(ctx, catalog.Include{Regular: true})
			Expect(labels(records)).To(Equal([]string{"Beta"}))
		})

		It("should fall back to the current profile when profiles cannot be listed", func() {
			platform.FailProfiles(errors.New("user service unavailable"))
			records := builder.Build(ctx, catalog.Include{Regular: true})
			Expect(labels(records)).To(Equal([]string{"Alpha"}))
		})
	})

	Context("when called twice", func() {
		BeforeEach(func() {
			platform.
				Install(owner, catalog.Activity{Package: "com.b", Label: "b"}).
				Install(owner, catalog.Activity{Package: "com.a", Label: "B"}).
				Install(work, catalog.Activity{Package: "com.a", Label: "B"})
		})

		It("should produce the same order", func() {
			first := builder.Build(ctx, catalog.Include{Regular: true})
			second := builder.Build(ctx, catalog.Include{Regular: true})
			Expect(second).To(Equal(first))
		})
	})
})
