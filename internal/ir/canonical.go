package ir

import (
	"bytes"
	"encoding/json"
	"fmt"

	"golang.org/x/text/unicode/norm"
)

// MarshalGlobal produces deterministic canonical JSON for a global
// protocol. This is the ONLY serialization that should be used for
// content-addressed identity computation.
//
// Canonicalization rules:
//  1. Object keys emitted in lexicographic order (keys are fixed per
//     node kind, so ordering is static)
//  2. No HTML escaping (< > & are NOT escaped)
//  3. Strings are NFC normalized
//  4. No insignificant whitespace
func MarshalGlobal(p *GlobalProtocol) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"body":`)
	if err := writeGlobal(&buf, p.Body); err != nil {
		return nil, err
	}
	buf.WriteString(`,"name":`)
	if err := writeString(&buf, p.Name); err != nil {
		return nil, err
	}
	buf.WriteString(`,"roles":[`)
	for i, r := range p.Roles {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeString(&buf, string(r)); err != nil {
			return nil, err
		}
	}
	buf.WriteString(`]}`)
	return buf.Bytes(), nil
}

// MarshalLocal produces deterministic canonical JSON for a local
// protocol tree, under the same rules as MarshalGlobal.
func MarshalLocal(l Local) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeLocal(&buf, l); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeGlobal(buf *bytes.Buffer, g Global) error {
	switch n := g.(type) {
	case *GMessage:
		buf.WriteString(`{"cont":`)
		if err := writeGlobal(buf, n.Cont); err != nil {
			return err
		}
		buf.WriteString(`,"from":`)
		if err := writeString(buf, string(n.From)); err != nil {
			return err
		}
		buf.WriteString(`,"kind":"message","payload":`)
		if err := writeString(buf, n.Payload); err != nil {
			return err
		}
		buf.WriteString(`,"to":`)
		if err := writeString(buf, string(n.To)); err != nil {
			return err
		}
		buf.WriteByte('}')
		return nil
	case *GChoice:
		buf.WriteString(`{"branches":[`)
		for i, b := range n.Branches {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteString(`{"body":`)
			if err := writeGlobal(buf, b.Body); err != nil {
				return err
			}
			buf.WriteString(`,"label":`)
			if err := writeString(buf, b.Label); err != nil {
				return err
			}
			buf.WriteByte('}')
		}
		buf.WriteString(`],"decider":`)
		if err := writeString(buf, string(n.Decider)); err != nil {
			return err
		}
		buf.WriteString(`,"kind":"choice"}`)
		return nil
	case *GRec:
		buf.WriteString(`{"body":`)
		if err := writeGlobal(buf, n.Body); err != nil {
			return err
		}
		buf.WriteString(`,"kind":"rec","label":`)
		if err := writeString(buf, n.Label); err != nil {
			return err
		}
		buf.WriteByte('}')
		return nil
	case *GVar:
		buf.WriteString(`{"kind":"var","label":`)
		if err := writeString(buf, n.Label); err != nil {
			return err
		}
		buf.WriteByte('}')
		return nil
	case *GEnd:
		buf.WriteString(`{"kind":"end"}`)
		return nil
	case nil:
		return fmt.Errorf("nil global node")
	default:
		return fmt.Errorf("unsupported global node: %T", g)
	}
}

func writeLocal(buf *bytes.Buffer, l Local) error {
	switch n := l.(type) {
	case *LSend:
		buf.WriteString(`{"cont":`)
		if err := writeLocal(buf, n.Cont); err != nil {
			return err
		}
		buf.WriteString(`,"kind":"send","payload":`)
		if err := writeString(buf, n.Payload); err != nil {
			return err
		}
		buf.WriteString(`,"to":`)
		if err := writeString(buf, string(n.To)); err != nil {
			return err
		}
		buf.WriteByte('}')
		return nil
	case *LRecv:
		buf.WriteString(`{"cont":`)
		if err := writeLocal(buf, n.Cont); err != nil {
			return err
		}
		buf.WriteString(`,"from":`)
		if err := writeString(buf, string(n.From)); err != nil {
			return err
		}
		buf.WriteString(`,"kind":"recv","payload":`)
		if err := writeString(buf, n.Payload); err != nil {
			return err
		}
		buf.WriteByte('}')
		return nil
	case *LSelect:
		buf.WriteString(`{"branches":[`)
		if err := writeLocalBranches(buf, n.Branches); err != nil {
			return err
		}
		buf.WriteString(`],"kind":"select","to":[`)
		for i, r := range n.To {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeString(buf, string(r)); err != nil {
				return err
			}
		}
		buf.WriteString(`]}`)
		return nil
	case *LOffer:
		buf.WriteString(`{"branches":[`)
		if err := writeLocalBranches(buf, n.Branches); err != nil {
			return err
		}
		buf.WriteString(`],"from":`)
		if err := writeString(buf, string(n.From)); err != nil {
			return err
		}
		buf.WriteString(`,"kind":"offer"}`)
		return nil
	case *LRec:
		buf.WriteString(`{"body":`)
		if err := writeLocal(buf, n.Body); err != nil {
			return err
		}
		buf.WriteString(`,"kind":"rec","label":`)
		if err := writeString(buf, n.Label); err != nil {
			return err
		}
		buf.WriteByte('}')
		return nil
	case *LVar:
		buf.WriteString(`{"kind":"var","label":`)
		if err := writeString(buf, n.Label); err != nil {
			return err
		}
		buf.WriteByte('}')
		return nil
	case *LEnd:
		buf.WriteString(`{"kind":"end"}`)
		return nil
	case nil:
		return fmt.Errorf("nil local node")
	default:
		return fmt.Errorf("unsupported local node: %T", l)
	}
}

func writeLocalBranches(buf *bytes.Buffer, branches []LBranch) error {
	for i, b := range branches {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(`{"body":`)
		if err := writeLocal(buf, b.Body); err != nil {
			return err
		}
		buf.WriteString(`,"label":`)
		if err := writeString(buf, b.Label); err != nil {
			return err
		}
		buf.WriteByte('}')
	}
	return nil
}

// writeString appends a canonical JSON string: NFC normalized, escaped
// without HTML escaping. json.Encoder appends a trailing newline, which
// is stripped before writing.
func writeString(buf *bytes.Buffer, s string) error {
	normalized := norm.NFC.String(s)

	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return err
	}
	out := tmp.Bytes()
	if len(out) > 0 && out[len(out)-1] == '\n' {
		out = out[:len(out)-1]
	}
	buf.Write(out)
	return nil
}
