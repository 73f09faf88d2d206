package parser

import (
	"io"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ParseCommand", func() {
	var (
		input    string
		parser   *Parser
		cmd      *Command
		parseErr error
	)

	JustBeforeEach(func() {
		parser, parseErr = NewParser(strings.NewReader(input))
		Expect(parseErr).NotTo(HaveOccurred())

		cmd, parseErr = parser.ParseCommand()
		Expect(parseErr).NotTo(HaveOccurred())
	})

	Context("when parsing open with launch extras", func() {
		BeforeEach(func() {
			input = `TXT01
"SHOW_HIDDEN_APPS: false
"CAN_RENAME: true
"SEARCH_HINT: find an app
open
`
		})

		It("should parse command name and version", func() {
			Expect(cmd.Name).To(Equal("open"))
			Expect(parser.Version()).To(Equal("01"))
		})

		It("should keep string arguments in push order", func() {
			Expect(cmd.Strings()).To(Equal([]string{
				"SHOW_HIDDEN_APPS: false",
				"CAN_RENAME: true",
				"SEARCH_HINT: find an app",
			}))
		})
	})

	Context("when a query starts with a space", func() {
		BeforeEach(func() {
			input = "TXT01\n\" al \r\nquery\n"
		})

		It("should keep the spaces", func() {
			Expect(cmd.Name).To(Equal("query"))
			Expect(cmd.Strings()).To(Equal([]string{" al "}))
		})
	})

	Context("when the query is blank", func() {
		BeforeEach(func() {
			input = "TXT01\n\"\nquery\n"
		})

		It("should push an empty string", func() {
			Expect(cmd.Args).To(HaveLen(1))
			Expect(cmd.Args[0].Type).To(Equal(TypeString))
			Expect(cmd.Args[0].Str).To(BeEmpty())
		})
	})

	Context("when parsing list-next with paging", func() {
		BeforeEach(func() {
			input = `TXT01
# second page
20
10
list-next
`
		})

		It("should parse integer arguments", func() {
			Expect(cmd.Name).To(Equal("list-next"))
			Expect(cmd.Ints()).To(Equal([]int64{20, 10}))
		})
	})

	Context("when a string looks like a command", func() {
		BeforeEach(func() {
			input = "TXT01\n\"list\nquery\n"
		})

		It("should treat it as a value", func() {
			Expect(cmd.Name).To(Equal("query"))
			Expect(cmd.Strings()).To(Equal([]string{"list"}))
		})
	})
})

var _ = Describe("NewParser", func() {
	It("should reject a foreign header", func() {
		_, err := NewParser(strings.NewReader("BIN01\nlist\n"))
		Expect(err).To(MatchError(ContainSubstring("unsupported format")))
	})

	It("should reject a short header", func() {
		_, err := NewParser(strings.NewReader("TX"))
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("ReadAllCommands", func() {
	It("should read a whole session", func() {
		p, err := NewParser(strings.NewReader("TXT01\n\"fire\nquery\nsubmit\nresult\n"))
		Expect(err).NotTo(HaveOccurred())

		cmds, err := p.ReadAllCommands()
		Expect(err).NotTo(HaveOccurred())
		Expect(cmds).To(HaveLen(3))
		Expect(cmds[0].Name).To(Equal("query"))
		Expect(cmds[2].Name).To(Equal("result"))
	})

	It("should fail on an unknown word", func() {
		p, err := NewParser(strings.NewReader("TXT01\nlaunch\n"))
		Expect(err).NotTo(HaveOccurred())
		_, err = p.ParseCommand()
		Expect(err).To(MatchError(ContainSubstring("cannot parse value")))
	})

	It("should end with EOF", func() {
		p, err := NewParser(strings.NewReader("TXT01\n"))
		Expect(err).NotTo(HaveOccurred())
		_, err = p.ParseCommand()
		Expect(err).To(Equal(io.EOF))
	})
})
