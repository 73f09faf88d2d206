package appsel

import (
	"io"
	"net"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/0xADE/ade-appsel/parser"
)

// fakeDaemon answers every command with a canned response and records what
// it received.
type fakeDaemon struct {
	replies  map[string]string
	received chan *parser.Command
}

func (d *fakeDaemon) serve(conn net.Conn) {
	defer conn.Close()
	p, err := parser.NewParser(conn)
	if err != nil {
		return
	}
	for {
		cmd, err := p.ParseCommand()
		if err != nil {
			return
		}
		d.received <- cmd
		reply, ok := d.replies[cmd.Name]
		if !ok {
			reply = "error-cmd: " + cmd.Name + "\nerror: unknown command\ndesc: Command not recognized\n\n"
		}
		if _, err := io.WriteString(conn, "TXT01"+reply); err != nil {
			return
		}
	}
}

var _ = Describe("Client", func() {
	var (
		daemon *fakeDaemon
		client *Client
	)

	BeforeEach(func() {
		daemon = &fakeDaemon{
			replies: map[string]string{
				"open":  "cmd: open\nstatus: 0\nhint: find\n\n",
				"list":  "cmd: list\nstatus: 0\nlist-len: 2\nbody:\ncom.alpha|UserHandle{0}\tAlpha ✨\ncom.beta|UserHandle{10}\tbeta ⧉\n\n",
				"query": "cmd: query\nstatus: 0\nmatches: 1\nresult: selected\npackage: com.alpha\ncomponent: com.alpha.Main\n\n",
				"hold":  "cmd: hold\nstatus: 0\nkey: com.beta|UserHandle{10}\nlabel: beta\nhide-label: show\ncan-rename: t\ncan-delete: f\n\n",
				"rename": "cmd: rename\nstatus: 0\nstate: renaming\nnotice: type a new name first\n\n",
			},
			received: make(chan *parser.Command, 8),
		}

		clientConn, serverConn := net.Pipe()
		go daemon.serve(serverConn)

		var err error
		client, err = NewClientConn(clientConn)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(client.Close)
	})

	It("should send launch extras as strings", func() {
		resp, err := client.Open(true, false, "find")
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.Attrs).To(HaveKeyWithValue("hint", "find"))

		var cmd *parser.Command
		Eventually(daemon.received).Should(Receive(&cmd))
		Expect(cmd.Strings()).To(Equal([]string{
			"SHOW_HIDDEN_APPS: true",
			"CAN_RENAME: false",
			"SEARCH_HINT: find",
		}))
	})

	It("should parse list bodies", func() {
		apps, resp, err := client.List(0, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.Attrs).To(HaveKeyWithValue("list-len", "2"))
		Expect(apps).To(Equal([]App{
			{Key: "com.alpha|UserHandle{0}", Label: "Alpha", New: true},
			{Key: "com.beta|UserHandle{10}", Label: "beta", Other: true},
		}))
	})

	It("should keep leading spaces of queries", func() {
		resp, err := client.Query(" al")
		Expect(err).NotTo(HaveOccurred())

		var cmd *parser.Command
		Eventually(daemon.received).Should(Receive(&cmd))
		Expect(cmd.Strings()).To(Equal([]string{" al"}))

		pkg, component, ok := resp.Selected()
		Expect(ok).To(BeTrue())
		Expect(resp.Done()).To(BeTrue())
		Expect(pkg).To(Equal("com.alpha"))
		Expect(component).To(Equal("com.alpha.Main"))
	})

	It("should decode the item menu", func() {
		menu, err := client.Hold("com.beta|UserHandle{10}")
		Expect(err).NotTo(HaveOccurred())
		Expect(menu).To(Equal(Menu{
			Key:       "com.beta|UserHandle{10}",
			Label:     "beta",
			HideLabel: "show",
			CanRename: true,
		}))
	})

	It("should collect notices", func() {
		resp, err := client.Rename("com.beta|UserHandle{10}", "")
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.Notices).To(Equal([]string{"type a new name first"}))
	})

	It("should turn error responses into errors", func() {
		_, err := client.Dismiss()
		var serverErr *ServerError
		Expect(err).To(BeAssignableToTypeOf(serverErr))
		Expect(err.Error()).To(ContainSubstring("unknown command"))
	})
})

var _ = Describe("FormatArgument", func() {
	It("should keep typed values and quote the rest", func() {
		Expect(FormatArgument("12")).To(Equal("12"))
		Expect(FormatArgument("t")).To(Equal("t"))
		Expect(FormatArgument(`"already`)).To(Equal(`"already`))
		Expect(strings.HasPrefix(FormatArgument("com.alpha|UserHandle{0}"), `"`)).To(BeTrue())
	})
})
