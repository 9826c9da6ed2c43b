package iocsh

import (
	"regexp"
	"strings"

	"github.com/ioctools/recwalk/pkg/diag"
	"github.com/ioctools/recwalk/pkg/epics"
)

func init() {
	addCommands(map[string]cmdFunc{
		"drvAsynIPPortConfigure":     drvAsynIPPortConfigure,
		"drvAsynSerialPortConfigure": drvAsynSerialPortConfigure,
		"asynSetOption":              asynSetOption,
		"asynOctetSetInputEos":       asynOctetSetEos("input_eos"),
		"asynOctetSetOutputEos":      asynOctetSetEos("output_eos"),
	})
}

// AsynPort is one configured asyn communication port.
type AsynPort struct {
	Name string
	// Kind is "ip" or "serial".
	Kind string
	// Address is the host:port for IP ports or the device path for serial
	// ports.
	Address string
	// Options holds asynSetOption and EOS settings, keyed per address.
	Options map[string]map[string]string
	Context diag.FullLoadContext
}

// AsynHandler tracks asyn ports configured by the script.
type AsynHandler struct {
	Ports map[string]*AsynPort
}

func newAsynHandler() *AsynHandler {
	return &AsynHandler{Ports: make(map[string]*AsynPort)}
}

func (h *AsynHandler) Name() string { return "asyn" }

// asynLinkPattern matches "@asyn(port addr timeout)" and the comma form in
// INST_IO link values.
var asynLinkPattern = regexp.MustCompile(`@asyn(?:Mask)?\(\s*([^,\s)]+)`)

// AnnotateRecord marks records whose input or output links address a
// configured asyn port.
func (h *AsynHandler) AnnotateRecord(st *ShellState, rec *epics.RecordInstance) {
	for _, field := range rec.Fields {
		m := asynLinkPattern.FindStringSubmatch(field.Value)
		if m == nil {
			continue
		}
		port, ok := h.Ports[m[1]]
		if !ok {
			continue
		}
		rec.Annotate(epics.Annotation{
			Handler: h.Name(),
			Kind:    "port",
			Data: map[string]string{
				"port":    port.Name,
				"kind":    port.Kind,
				"address": port.Address,
				"field":   field.Name,
			},
		})
	}
}

func (h *AsynHandler) addPort(st *ShellState, name, kind, address string) {
	h.Ports[name] = &AsynPort{
		Name:    name,
		Kind:    kind,
		Address: address,
		Options: make(map[string]map[string]string),
		Context: append(diag.FullLoadContext(nil), st.LoadContext...),
	}
}

func (h *AsynPort) setOption(addr, key, value string) {
	if h.Options[addr] == nil {
		h.Options[addr] = make(map[string]string)
	}
	h.Options[addr][key] = value
}

func asynHandler(st *ShellState) *AsynHandler {
	h, _ := st.handlerNamed("asyn").(*AsynHandler)
	return h
}

func drvAsynIPPortConfigure(st *ShellState, res *LineResult) error {
	if len(res.Args) < 2 {
		return errClass("bad-arguments", "drvAsynIPPortConfigure requires a port name and address")
	}
	h := asynHandler(st)
	if h == nil {
		return errClass("no-handler", "asyn handler not registered")
	}
	h.addPort(st, res.Args[0], "ip", res.Args[1])
	res.setMeta("port", res.Args[0])
	return nil
}

func drvAsynSerialPortConfigure(st *ShellState, res *LineResult) error {
	if len(res.Args) < 2 {
		return errClass("bad-arguments", "drvAsynSerialPortConfigure requires a port name and device")
	}
	h := asynHandler(st)
	if h == nil {
		return errClass("no-handler", "asyn handler not registered")
	}
	h.addPort(st, res.Args[0], "serial", res.Args[1])
	res.setMeta("port", res.Args[0])
	return nil
}

func asynSetOption(st *ShellState, res *LineResult) error {
	if len(res.Args) < 4 {
		return errClass("bad-arguments", "asynSetOption requires port, addr, key, value")
	}
	h := asynHandler(st)
	if h == nil {
		return errClass("no-handler", "asyn handler not registered")
	}
	port, ok := h.Ports[res.Args[0]]
	if !ok {
		return errClass("unknown-port", "asyn port %q is not configured", res.Args[0])
	}
	port.setOption(res.Args[1], res.Args[2], res.Args[3])
	return nil
}

func asynOctetSetEos(key string) cmdFunc {
	return func(st *ShellState, res *LineResult) error {
		if len(res.Args) < 3 {
			return errClass("bad-arguments", "asynOctetSet*Eos requires port, addr, eos")
		}
		h := asynHandler(st)
		if h == nil {
			return errClass("no-handler", "asyn handler not registered")
		}
		port, ok := h.Ports[res.Args[0]]
		if !ok {
			return errClass("unknown-port", "asyn port %q is not configured", res.Args[0])
		}
		port.setOption(res.Args[1], key, unescapeEos(res.Args[2]))
		return nil
	}
}

func unescapeEos(s string) string {
	r := strings.NewReplacer(`\r`, "\r", `\n`, "\n")
	return r.Replace(s)
}
