package catalog_test

import (
	"bytes"
	"sort"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/text/language"

	"github.com/0xADE/ade-appsel/internal/catalog"
)

var _ = Describe("Collator", func() {
	var collator catalog.Collator

	BeforeEach(func() {
		collator = catalog.NewCollator(language.English)
	})

	It("should ignore case", func() {
		Expect(collator.Key("Mail")).To(Equal(collator.Key("mail")))
	})

	It("should order accented letters with their base letter", func() {
		labels := []string{"zed", "Écran", "beta", "Alpha"}
		sort.Slice(labels, func(i, j int) bool {
			return bytes.Compare(collator.Key(labels[i]), collator.Key(labels[j])) < 0
		})
		Expect(labels).To(Equal([]string{"Alpha", "beta", "Écran", "zed"}))
	})

	It("should return independent keys", func() {
		first := collator.Key("first")
		_ = collator.Key("second label that is longer")
		Expect(first).To(Equal(collator.Key("first")))
	})
})
