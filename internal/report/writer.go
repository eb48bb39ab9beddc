package report

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"firestige.xyz/hdrview/internal/core"
)

// Writer writes records in one output format. Writers are not safe for
// concurrent use.
type Writer interface {
	Write(rec *Record) error
	// Flush writes buffered output. A YAML writer cannot be written to
	// after Flush.
	Flush() error
}

// NewWriter returns a writer for format: "text", "json" (one object per
// line) or "yaml" (one document per record).
func NewWriter(format string, w io.Writer) (Writer, error) {
	switch format {
	case "", "text":
		return &textWriter{w: bufio.NewWriter(w)}, nil
	case "json":
		bw := bufio.NewWriter(w)
		return &jsonWriter{w: bw, enc: json.NewEncoder(bw)}, nil
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		return &yamlWriter{enc: enc}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported output format %q", core.ErrConfigInvalid, format)
	}
}

type jsonWriter struct {
	w   *bufio.Writer
	enc *json.Encoder
}

func (j *jsonWriter) Write(rec *Record) error { return j.enc.Encode(rec) }
func (j *jsonWriter) Flush() error            { return j.w.Flush() }

type yamlWriter struct {
	enc *yaml.Encoder
}

func (y *yamlWriter) Write(rec *Record) error { return y.enc.Encode(rec) }
func (y *yamlWriter) Flush() error            { return y.enc.Close() }

// textWriter prints one line per packet and one indented line per tunnel.
type textWriter struct {
	w *bufio.Writer
}

func (t *textWriter) Write(rec *Record) error {
	var b strings.Builder
	if rec.Index > 0 {
		fmt.Fprintf(&b, "#%d ", rec.Index)
	}
	if rec.Time != "" {
		b.WriteString(rec.Time)
		b.WriteByte(' ')
	}
	fmt.Fprintf(&b, "len=%d", rec.Length)
	if s := formatPacket(&rec.Packet); s != "" {
		b.WriteString(" | ")
		b.WriteString(s)
	}
	if len(rec.Checksums) > 0 {
		b.WriteString(" | checksums")
		for _, c := range rec.Checksums {
			b.WriteByte(' ')
			b.WriteString(formatChecksum(c))
		}
	}
	if rec.Error != nil {
		b.WriteString(" | error: ")
		b.WriteString(rec.Error.Message)
	}
	if rec.Stop != nil {
		b.WriteString(" | stop: ")
		b.WriteString(rec.Stop.Message)
	}
	b.WriteByte('\n')

	for _, tun := range rec.Tunnels {
		fmt.Fprintf(&b, "  -> %s offset=%d", tun.Kind, tun.Offset)
		if tun.VNI != nil {
			fmt.Fprintf(&b, " vni=%d", *tun.VNI)
		}
		if tun.Protocol != "" {
			fmt.Fprintf(&b, " proto=%s", tun.Protocol)
		}
		if s := formatPacket(&tun.Inner); s != "" {
			b.WriteString(" | ")
			b.WriteString(s)
		}
		b.WriteByte('\n')
	}

	_, err := t.w.WriteString(b.String())
	return err
}

func (t *textWriter) Flush() error { return t.w.Flush() }

func formatPacket(p *Packet) string {
	var parts []string
	if p.Link != nil {
		parts = append(parts, fmt.Sprintf("eth %s > %s %s", p.Link.Src, p.Link.Dst, p.Link.EtherType))
	}
	if len(p.VLANs) > 0 {
		ids := make([]string, len(p.VLANs))
		for i, id := range p.VLANs {
			ids[i] = fmt.Sprint(id)
		}
		parts = append(parts, "vlan "+strings.Join(ids, ","))
	}
	if n := p.Net; n != nil {
		s := fmt.Sprintf("ipv%d %s > %s %s ttl=%d", n.Version, n.Src, n.Dst, n.Protocol, n.TTL)
		if len(n.Extensions) > 0 {
			s += " ext=" + strings.Join(n.Extensions, ",")
		}
		if n.Fragmented {
			s += " fragment"
		}
		parts = append(parts, s)
	}
	if t := p.Transport; t != nil {
		s := t.Kind
		switch {
		case t.ICMP != nil:
			s += fmt.Sprintf(" type=%d code=%d", t.ICMP.Type, t.ICMP.Code)
		default:
			s += fmt.Sprintf(" %d > %d", t.SrcPort, t.DstPort)
		}
		if t.Flags != "" {
			s += " [" + t.Flags + "]"
		}
		if len(t.Options) > 0 {
			s += " <" + strings.Join(t.Options, ",") + ">"
		}
		if t.OptionsError != "" {
			s += " options error: " + t.OptionsError
		}
		parts = append(parts, s)
	}
	if pl := p.Payload; pl != nil {
		s := fmt.Sprintf("payload %s offset=%d len=%d", pl.Kind, pl.Offset, pl.Len)
		if pl.Protocol != "" {
			s += " proto=" + pl.Protocol
		}
		if pl.Incomplete {
			s += " incomplete"
		}
		if pl.Data != "" {
			s += " data=" + pl.Data
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, " | ")
}

func formatChecksum(c Checksum) string {
	name := c.Layer
	if c.Depth > 0 {
		name = fmt.Sprintf("%s@%d", c.Layer, c.Depth)
	}
	if c.Valid {
		return name + "=ok"
	}
	return fmt.Sprintf("%s=bad(0x%04x!=0x%04x)", name, c.Got, c.Want)
}
