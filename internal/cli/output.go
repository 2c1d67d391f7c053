package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/skip2/go-qrcode"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
	errW   io.Writer
}

// NewOutput creates a new Output formatter writing to w and errW
func NewOutput(format string, w, errW io.Writer) *Output {
	return &Output{format: format, w: w, errW: errW}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintError outputs an error
func (o *Output) PrintError(err error) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]any{
			"error": map[string]string{"message": err.Error()},
		})
		_, _ = fmt.Fprintln(o.errW, string(data))
	} else {
		_, _ = fmt.Fprintf(o.errW, "Error: %s\n", err)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		_, _ = fmt.Fprintln(o.w, string(data))
	} else {
		_, _ = fmt.Fprintln(o.w, msg)
	}
}

// PrintCode shows a barcode payload as text and, in text mode, as a
// terminal QR code for another device to scan
func (o *Output) PrintCode(label, code string, qr bool) {
	if o.format == "json" {
		o.printJSON(map[string]string{"label": label, "code": code})
		return
	}

	_, _ = fmt.Fprintf(o.w, "%s:\n%s\n", label, code)
	if !qr {
		return
	}
	q, err := qrcode.New(code, qrcode.Medium)
	if err != nil {
		o.PrintError(fmt.Errorf("render QR code: %w", err))
		return
	}
	_, _ = fmt.Fprintln(o.w, q.ToSmallString(false))
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case HealthResult:
		_, _ = fmt.Fprintf(o.w, "Status: %s\n", v.Status)
	case Outcome:
		o.printOutcome(v)
	case PlayersResult:
		o.printPlayers(v.Players)
	case Player:
		o.printPlayers([]Player{v})
	case HistoryResult:
		o.printHistory(v.Events)
	case VerifyResult:
		o.printVerify(v)
	case WalletProfile:
		o.printProfile(v)
	case WalletHistory:
		o.printWalletHistory(v)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// HealthResult response type
type HealthResult struct {
	Status string `json:"status"`
}

// Outcome response type (matches API)
type Outcome struct {
	Applied bool         `json:"applied"`
	Message string       `json:"message"`
	Reason  string       `json:"reason,omitempty"`
	Event   *LedgerEvent `json:"event,omitempty"`
}

// Player response type
type Player struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Color   string `json:"color"`
	Balance int64  `json:"balance"`
}

// PlayersResult response type
type PlayersResult struct {
	Players []Player `json:"players"`
}

// LedgerEvent response type
type LedgerEvent struct {
	ID         string    `json:"id"`
	Seq        int64     `json:"seq,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	PlayerID   string    `json:"player_id"`
	PlayerName string    `json:"player_name"`
	Kind       string    `json:"kind"`
	Amount     *int64    `json:"amount,omitempty"`
	TargetSeq  int64     `json:"target_seq,omitempty"`
	Message    string    `json:"message"`
	Undone     bool      `json:"undone,omitempty"`
}

// HistoryResult response type
type HistoryResult struct {
	Events []LedgerEvent `json:"events"`
}

// SyncResult response type
type SyncResult struct {
	Code    string `json:"code"`
	NextSeq int64  `json:"next_seq"`
	Balance int64  `json:"balance"`
	History int    `json:"history"`
}

// BalanceMismatch response type
type BalanceMismatch struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
	Stored   int64  `json:"stored"`
	Computed int64  `json:"computed"`
}

// VerifyResult response type
type VerifyResult struct {
	OK          bool              `json:"ok"`
	Players     int               `json:"players"`
	Events      int               `json:"events"`
	Mismatches  []BalanceMismatch `json:"mismatches"`
	MissingKeys []string          `json:"missing_keys"`
}

// WalletProfile is the local device profile
type WalletProfile struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Color          string `json:"color"`
	InitialBalance int64  `json:"initial_balance"`
	NextSeq        int64  `json:"next_seq"`
}

// WalletHistory is the local device history, newest first
type WalletHistory struct {
	Entries []WalletEntry `json:"entries"`
}

// WalletEntry is one local history row
type WalletEntry struct {
	Seq       int64     `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	Kind      string    `json:"kind"`
	Amount    int64     `json:"amount,omitempty"`
	TargetSeq int64     `json:"target_seq,omitempty"`
	IsUndone  bool      `json:"is_undone,omitempty"`
}

func (o *Output) table(header []string) *tablewriter.Table {
	t := tablewriter.NewWriter(o.w)
	t.SetHeader(header)
	t.SetBorder(false)
	t.SetAutoWrapText(false)
	return t
}

func (o *Output) printOutcome(v Outcome) {
	if v.Applied {
		_, _ = fmt.Fprintf(o.w, "Applied: %s\n", v.Message)
		return
	}
	_, _ = fmt.Fprintf(o.w, "Rejected: %s\n", v.Message)
}

func (o *Output) printPlayers(players []Player) {
	if len(players) == 0 {
		_, _ = fmt.Fprintln(o.w, "No players registered")
		return
	}
	t := o.table([]string{"ID", "Name", "Color", "Balance"})
	for _, p := range players {
		t.Append([]string{p.ID, p.Name, p.Color, strconv.FormatInt(p.Balance, 10)})
	}
	t.Render()
}

func (o *Output) printHistory(events []LedgerEvent) {
	if len(events) == 0 {
		_, _ = fmt.Fprintln(o.w, "No history")
		return
	}
	t := o.table([]string{"Time", "Player", "Seq", "Amount", "Message"})
	for _, e := range events {
		amount := ""
		if e.Amount != nil {
			amount = strconv.FormatInt(*e.Amount, 10)
		}
		seq := ""
		if e.Seq > 0 {
			seq = strconv.FormatInt(e.Seq, 10)
		}
		msg := e.Message
		if e.Undone {
			msg += " (undone)"
		}
		t.Append([]string{e.Timestamp.Local().Format("15:04:05"), e.PlayerName, seq, amount, msg})
	}
	t.Render()
}

func (o *Output) printVerify(v VerifyResult) {
	if v.OK {
		_, _ = fmt.Fprintf(o.w, "Ledger OK: %d players, %d events\n", v.Players, v.Events)
		return
	}
	_, _ = fmt.Fprintf(o.w, "Ledger inconsistent: %d players, %d events\n", v.Players, v.Events)
	for _, m := range v.Mismatches {
		_, _ = fmt.Fprintf(o.w, "  %s (%s): stored %d, history says %d\n", m.Name, m.PlayerID, m.Stored, m.Computed)
	}
	for _, k := range v.MissingKeys {
		_, _ = fmt.Fprintf(o.w, "  event %s missing from processed set\n", k)
	}
}

func (o *Output) printProfile(p WalletProfile) {
	_, _ = fmt.Fprintf(o.w, "Player: %s (%s)\n", p.Name, p.ID)
	_, _ = fmt.Fprintf(o.w, "Color: %s\n", p.Color)
	_, _ = fmt.Fprintf(o.w, "Initial balance: %d\n", p.InitialBalance)
	_, _ = fmt.Fprintf(o.w, "Next seq: %d\n", p.NextSeq)
}

func (o *Output) printWalletHistory(h WalletHistory) {
	if len(h.Entries) == 0 {
		_, _ = fmt.Fprintln(o.w, "No history")
		return
	}
	t := o.table([]string{"Seq", "Time", "Entry"})
	for _, e := range h.Entries {
		var desc string
		switch {
		case e.Kind == "undo":
			desc = fmt.Sprintf("undo #%d", e.TargetSeq)
		case e.Amount > 0:
			desc = fmt.Sprintf("received %d", e.Amount)
		default:
			desc = fmt.Sprintf("paid %d", -e.Amount)
		}
		if e.IsUndone {
			desc += " (undone)"
		}
		t.Append([]string{strconv.FormatInt(e.Seq, 10), e.Timestamp.Local().Format("15:04:05"), desc})
	}
	t.Render()
}
