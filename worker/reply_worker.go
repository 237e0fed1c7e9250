package worker

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"

	"leadflow/config"
	"leadflow/engine"
	"leadflow/store"
)

// ReplyWorker polls the shared inbox over IMAP and converts unseen mail
// from known leads into email_reply events. The scorer handles the rest:
// the reply raises the score and the trigger evaluator suppresses
// further reactive outreach.
type ReplyWorker struct {
	Store    *store.GormStore
	Scorer   *engine.Scorer
	Logger   *log.Logger
	Interval time.Duration
}

func NewReplyWorker(st *store.GormStore, scorer *engine.Scorer, logger *log.Logger) *ReplyWorker {
	interval := time.Duration(config.AppConfig.ReplyPollMinutes) * time.Minute
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &ReplyWorker{
		Store:    st,
		Scorer:   scorer,
		Logger:   logger,
		Interval: interval,
	}
}

func (rw *ReplyWorker) Start(ctx context.Context) {
	if config.AppConfig.IMAP.Host == "" {
		rw.Logger.Println("IMAP not configured, reply worker disabled")
		return
	}

	rw.Logger.Println("Reply worker started")

	ticker := time.NewTicker(rw.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			rw.Logger.Println("Reply worker shutting down...")
			return
		case <-ticker.C:
			if err := rw.fetchReplies(); err != nil {
				rw.Logger.Printf("Error fetching replies: %v", err)
			}
		}
	}
}

func (rw *ReplyWorker) fetchReplies() error {
	cfg := config.AppConfig.IMAP

	imapClient, err := rw.connect(cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to IMAP server: %v", err)
	}
	defer imapClient.Logout()

	if err := imapClient.Login(cfg.Username, cfg.Password); err != nil {
		return fmt.Errorf("failed to login to IMAP server: %v", err)
	}

	mailbox := cfg.Mailbox
	if mailbox == "" {
		mailbox = "INBOX"
	}
	if _, err := imapClient.Select(mailbox, false); err != nil {
		return fmt.Errorf("failed to select mailbox: %v", err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{"\\Seen"}
	ids, err := imapClient.Search(criteria)
	if err != nil {
		return fmt.Errorf("failed to search messages: %v", err)
	}
	if len(ids) == 0 {
		return nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(ids...)

	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- imapClient.Fetch(seqset, []imap.FetchItem{imap.FetchEnvelope, imap.FetchItem("BODY.PEEK[]")}, messages)
	}()

	processed := new(imap.SeqSet)
	for msg := range messages {
		if err := rw.processMessage(msg); err != nil {
			rw.Logger.Printf("Failed to process message %d: %v", msg.SeqNum, err)
			continue
		}
		processed.AddNum(msg.SeqNum)
	}

	if err := <-done; err != nil {
		return fmt.Errorf("error during fetch: %v", err)
	}

	if !processed.Empty() {
		item := imap.FormatFlagsOp(imap.AddFlags, true)
		if err := imapClient.Store(processed, item, []interface{}{imap.SeenFlag}, nil); err != nil {
			rw.Logger.Printf("Failed to mark messages seen: %v", err)
		}
	}
	return nil
}

func (rw *ReplyWorker) connect(cfg config.IMAPConfig) (*client.Client, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	switch strings.ToUpper(cfg.Encryption) {
	case "SSL", "TLS":
		return client.DialTLS(addr, &tls.Config{ServerName: cfg.Host})
	case "STARTTLS":
		c, err := client.Dial(addr)
		if err != nil {
			return nil, err
		}
		if err := c.StartTLS(&tls.Config{ServerName: cfg.Host}); err != nil {
			return nil, err
		}
		return c, nil
	default:
		return client.Dial(addr)
	}
}

func (rw *ReplyWorker) processMessage(msg *imap.Message) error {
	if msg.Envelope == nil || len(msg.Envelope.From) == 0 {
		return fmt.Errorf("message has no sender envelope")
	}

	from := msg.Envelope.From[0]
	address := strings.ToLower(from.MailboxName + "@" + from.HostName)

	state, err := rw.Store.FindLeadByEmail(address)
	if err != nil {
		return err
	}
	if state == nil {
		// Not from a tracked lead, leave it alone.
		return nil
	}

	metadata := map[string]string{
		"from":    address,
		"subject": msg.Envelope.Subject,
	}
	if snippet := extractSnippet(msg); snippet != "" {
		metadata["snippet"] = snippet
	}

	rw.Logger.Printf("Reply from lead %s (%s)", state.LeadID, address)
	return rw.Scorer.TrackEvent(state.LeadID, "email_reply", metadata)
}

// replySnippetLimit caps the snippet stored in reply event metadata.
const replySnippetLimit = 200

// truncateRunes cuts s to at most max bytes without splitting a
// multi-byte rune.
func truncateRunes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// extractSnippet pulls the first plain-text part of the message, capped
// for audit readability. Parsing failures are not fatal.
func extractSnippet(msg *imap.Message) string {
	section := imap.BodySectionName{}
	literal := msg.GetBody(&section)
	if literal == nil {
		return ""
	}

	mr, err := mail.CreateReader(literal)
	if err != nil {
		return ""
	}

	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return ""
		}
		if _, ok := p.Header.(*mail.InlineHeader); ok {
			body, err := io.ReadAll(p.Body)
			if err != nil {
				return ""
			}
			return truncateRunes(strings.TrimSpace(string(body)), replySnippetLimit)
		}
	}
	return ""
}
