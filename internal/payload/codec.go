package payload

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mcoot/tabletop-bank/internal/model"
)

// Wire shapes. Field order here is the encoded key order.

type registerWire struct {
	Act  model.Action   `json:"act"`
	UUID model.PlayerID `json:"uuid"`
	Name string         `json:"name"`
	Col  string         `json:"col"`
	Bal  int64          `json:"bal"`
}

type transactWire struct {
	Act  model.Action   `json:"act"`
	UUID model.PlayerID `json:"uuid"`
	Amt  int64          `json:"amt"`
	Seq  int64          `json:"seq"`
}

type undoWire struct {
	Act  model.Action   `json:"act"`
	UUID model.PlayerID `json:"uuid"`
	Tgt  int64          `json:"tgt"`
	Seq  int64          `json:"seq"`
}

type syncWire struct {
	Act  model.Action   `json:"act"`
	UUID model.PlayerID `json:"uuid"`
	Name string         `json:"name"`
	Col  string         `json:"col"`
	Seq  int64          `json:"seq"`
	Bal  int64          `json:"bal"`
	Hist *[][4]int64    `json:"hist,omitempty"`
}

// Encode renders a payload as compact JSON text suitable for a barcode.
// The output is deterministic for a given payload.
func Encode(p model.Payload) (string, error) {
	var wire any

	switch v := p.(type) {
	case model.RegisterPayload:
		wire = registerWire{Act: model.ActionRegister, UUID: v.UUID, Name: v.Name, Col: v.Color, Bal: v.Balance}
	case model.TransactPayload:
		wire = transactWire{Act: model.ActionTransact, UUID: v.UUID, Amt: v.Amount, Seq: v.Seq}
	case model.UndoPayload:
		wire = undoWire{Act: model.ActionUndo, UUID: v.UUID, Tgt: v.TargetSeq, Seq: v.Seq}
	case model.SyncPayload:
		w := syncWire{Act: model.ActionSync, UUID: v.UUID, Name: v.Name, Col: v.Color, Seq: v.Seq, Bal: v.Balance}
		if v.History != nil {
			hist := make([][4]int64, len(v.History))
			for i, t := range v.History {
				hist[i] = [4]int64{t.Seq, int64(t.Kind), t.Value, t.Timestamp}
			}
			w.Hist = &hist
		}
		wire = w
	default:
		return "", fmt.Errorf("%w: cannot encode %T", model.ErrInvalidPayload, p)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(wire); err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// Decode parses barcode text into a payload.
// Failures are always returned as *DecodeError.
func Decode(text string) (model.Payload, error) {
	obj, err := parseObject([]byte(text))
	if err != nil {
		return nil, err
	}

	act, err := obj.str("act")
	if err != nil {
		return nil, err
	}

	switch model.Action(act) {
	case model.ActionRegister:
		return decodeRegister(obj)
	case model.ActionTransact:
		return decodeTransact(obj)
	case model.ActionUndo:
		return decodeUndo(obj)
	case model.ActionSync:
		return decodeSync(obj)
	default:
		return nil, &DecodeError{Kind: UnknownAction, Detail: fmt.Sprintf("act %q", act)}
	}
}

func decodeRegister(obj object) (model.Payload, error) {
	id, err := obj.uuid()
	if err != nil {
		return nil, err
	}
	name, err := obj.str("name")
	if err != nil {
		return nil, err
	}
	col, err := obj.str("col")
	if err != nil {
		return nil, err
	}
	bal, err := obj.amount("bal")
	if err != nil {
		return nil, err
	}
	return model.RegisterPayload{UUID: id, Name: name, Color: col, Balance: bal}, nil
}

func decodeTransact(obj object) (model.Payload, error) {
	id, err := obj.uuid()
	if err != nil {
		return nil, err
	}
	amt, err := obj.amount("amt")
	if err != nil {
		return nil, err
	}
	seq, err := obj.positive("seq")
	if err != nil {
		return nil, err
	}
	return model.TransactPayload{UUID: id, Amount: amt, Seq: seq}, nil
}

func decodeUndo(obj object) (model.Payload, error) {
	id, err := obj.uuid()
	if err != nil {
		return nil, err
	}
	tgt, err := obj.positive("tgt")
	if err != nil {
		return nil, err
	}
	seq, err := obj.positive("seq")
	if err != nil {
		return nil, err
	}
	return model.UndoPayload{UUID: id, TargetSeq: tgt, Seq: seq}, nil
}

func decodeSync(obj object) (model.Payload, error) {
	id, err := obj.uuid()
	if err != nil {
		return nil, err
	}
	name, err := obj.str("name")
	if err != nil {
		return nil, err
	}
	col, err := obj.str("col")
	if err != nil {
		return nil, err
	}
	seq, err := obj.positive("seq")
	if err != nil {
		return nil, err
	}
	bal, err := obj.amount("bal")
	if err != nil {
		return nil, err
	}

	p := model.SyncPayload{UUID: id, Name: name, Color: col, Seq: seq, Balance: bal}

	raw, ok := obj["hist"]
	if !ok {
		return p, nil
	}
	p.History, err = decodeHistory(raw)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func decodeHistory(raw json.RawMessage) ([]model.HistoryTuple, error) {
	var rows []json.RawMessage
	if err := json.Unmarshal(raw, &rows); err != nil || rows == nil {
		return nil, invalidf("hist must be an array")
	}

	hist := make([]model.HistoryTuple, 0, len(rows))
	for i, row := range rows {
		var cells []json.RawMessage
		if err := json.Unmarshal(row, &cells); err != nil || len(cells) != 4 {
			return nil, invalidf("hist[%d] must be a 4-element array", i)
		}

		var vals [4]int64
		for j, cell := range cells {
			n, ok := parseInt(cell)
			if !ok {
				return nil, invalidf("hist[%d][%d] must be an integer", i, j)
			}
			vals[j] = n
		}

		t := model.HistoryTuple{Seq: vals[0], Kind: model.HistoryKind(vals[1]), Value: vals[2], Timestamp: vals[3]}
		if t.Seq < 1 {
			return nil, invalidf("hist[%d] seq must be >= 1", i)
		}
		switch t.Kind {
		case model.HistoryKindTransact:
			if !model.ValidAmount(t.Value) {
				return nil, invalidf("hist[%d] amount out of range", i)
			}
		case model.HistoryKindUndo:
			if t.Value < 1 {
				return nil, invalidf("hist[%d] undo target must be >= 1", i)
			}
		default:
			return nil, invalidf("hist[%d] kind must be 1 or 2", i)
		}
		hist = append(hist, t)
	}
	return hist, nil
}

// object is a decoded top-level JSON object with its values left raw
type object map[string]json.RawMessage

func parseObject(data []byte) (object, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	var obj object
	if err := dec.Decode(&obj); err != nil {
		return nil, invalidf("not a JSON object")
	}
	if obj == nil {
		return nil, invalidf("not a JSON object")
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, invalidf("trailing data after object")
	}
	return obj, nil
}

func (o object) str(key string) (string, error) {
	raw, ok := o[key]
	if !ok {
		return "", invalidf("missing %s", key)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", invalidf("%s is malformed", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", invalidf("%s must be a string", key)
	}
	return s, nil
}

func (o object) uuid() (model.PlayerID, error) {
	s, err := o.str("uuid")
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", invalidf("uuid must not be empty")
	}
	return model.PlayerID(s), nil
}

func (o object) integer(key string) (int64, error) {
	raw, ok := o[key]
	if !ok {
		return 0, invalidf("missing %s", key)
	}
	n, ok := parseInt(raw)
	if !ok {
		return 0, invalidf("%s must be an integer", key)
	}
	return n, nil
}

// amount reads an integer limited to ±model.MaxAmount
func (o object) amount(key string) (int64, error) {
	n, err := o.integer(key)
	if err != nil {
		return 0, err
	}
	if !model.ValidAmount(n) {
		return 0, invalidf("%s out of range", key)
	}
	return n, nil
}

func (o object) positive(key string) (int64, error) {
	n, err := o.integer(key)
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, invalidf("%s must be >= 1", key)
	}
	return n, nil
}

// parseInt accepts only JSON numbers that are exact 64-bit integers
func parseInt(raw json.RawMessage) (int64, bool) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return 0, false
	}
	num, ok := v.(json.Number)
	if !ok {
		return 0, false
	}
	n, err := num.Int64()
	if err != nil {
		return 0, false
	}
	return n, true
}
