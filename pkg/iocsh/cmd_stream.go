package iocsh

import (
	"regexp"
	"strings"

	"github.com/ioctools/recwalk/pkg/epics"
	"github.com/ioctools/recwalk/pkg/parse/streamproto"
)

func init() {
	addCommands(map[string]cmdFunc{
		"streamSetLogfile": func(st *ShellState, res *LineResult) error {
			if len(res.Args) < 1 {
				return errClass("bad-arguments", "streamSetLogfile requires a file")
			}
			if h := streamHandler(st); h != nil {
				h.Logfile = st.ResolvePath(res.Args[0])
			}
			return nil
		},
	})
}

// StreamHandler resolves stream device links against their protocol files.
// Protocol files are located through STREAM_PROTOCOL_PATH and parsed once.
type StreamHandler struct {
	ProtocolPath []string
	Logfile      string

	protocols map[string]*streamproto.ProtocolFile
	missing   map[string]bool
}

func newStreamHandler() *StreamHandler {
	return &StreamHandler{
		protocols: make(map[string]*streamproto.ProtocolFile),
		missing:   make(map[string]bool),
	}
}

func (h *StreamHandler) Name() string { return "stream" }

// streamLinkPattern matches "@file.proto protocol(args) port addr" link
// values used by stream device support.
var streamLinkPattern = regexp.MustCompile(`^@(\S+)\s+([A-Za-z0-9_]+)(?:\(([^)]*)\))?\s+(\S+)`)

// AnnotateRecord resolves the protocol reference of stream records and
// attaches the protocol file, protocol name and port.
func (h *StreamHandler) AnnotateRecord(st *ShellState, rec *epics.RecordInstance) {
	dtyp, ok := rec.Fields["DTYP"]
	if !ok || dtyp.Value != "stream" {
		return
	}
	for _, fieldName := range []string{"INP", "OUT"} {
		field, ok := rec.Fields[fieldName]
		if !ok {
			continue
		}
		m := streamLinkPattern.FindStringSubmatch(field.Value)
		if m == nil {
			continue
		}
		fileName, protoName, args, port := m[1], m[2], m[3], m[4]
		data := map[string]string{
			"file":     fileName,
			"protocol": protoName,
			"port":     port,
			"field":    fieldName,
		}
		if args != "" {
			data["args"] = args
		}
		if pf := h.loadProtocolFile(st, fileName); pf != nil {
			if proto, ok := pf.Protocols[protoName]; ok {
				data["commands"] = itoa(len(proto.Commands))
			} else {
				st.Lint.Warnf(field.Context, "unknown-protocol",
					"record %q: protocol %q not found in %s", rec.Name, protoName, fileName)
			}
		}
		rec.Annotate(epics.Annotation{Handler: h.Name(), Kind: "protocol", Data: data})
	}
}

// loadProtocolFile finds and parses a protocol file through the protocol
// path, caching both hits and misses.
func (h *StreamHandler) loadProtocolFile(st *ShellState, name string) *streamproto.ProtocolFile {
	if pf, ok := h.protocols[name]; ok {
		return pf
	}
	if h.missing[name] {
		return nil
	}
	dirs := h.ProtocolPath
	if len(dirs) == 0 {
		dirs = []string{"."}
	}
	for _, dir := range dirs {
		path := name
		if dir != "" && dir != "." {
			path = strings.TrimSuffix(dir, "/") + "/" + name
		}
		src, err := st.ReadFile(path)
		if err != nil {
			continue
		}
		pf, parseErr := streamproto.Parse(src)
		if parseErr != nil {
			st.Lint.Errorf(st.LoadContext, "parse-error", "%s: %v", src.Name, parseErr)
		}
		h.protocols[name] = pf
		return pf
	}
	h.missing[name] = true
	st.Lint.Warnf(st.LoadContext, "missing-protocol-file",
		"protocol file %q not found on STREAM_PROTOCOL_PATH", name)
	return nil
}

func streamHandler(st *ShellState) *StreamHandler {
	h, _ := st.handlerNamed("stream").(*StreamHandler)
	return h
}
