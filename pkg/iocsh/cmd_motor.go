package iocsh

import (
	"github.com/ioctools/recwalk/pkg/diag"
	"github.com/ioctools/recwalk/pkg/epics"
)

// motorCommands maps motor controller creation commands to the positions of
// the controller name and the asyn port argument (-1 when the controller
// talks to hardware directly).
var motorCommands = map[string]struct{ nameArg, portArg int }{
	"ACRCreateController":        {0, 1},
	"EnsembleAsynConfig":         {0, 1},
	"smarActMCSCreateController": {0, 1},
	"XPSCreateController":        {0, -1},
	"motorSimCreateController":   {0, -1},
}

func init() {
	m := make(map[string]cmdFunc, len(motorCommands))
	for name, spec := range motorCommands {
		m[name] = createMotorController(name, spec.nameArg, spec.portArg)
	}
	addCommands(m)
}

// MotorController is one controller created by the script.
type MotorController struct {
	Name string
	// Command is the creation command that configured the controller.
	Command string
	// AsynPort is the asyn port the controller communicates through, if
	// it uses one.
	AsynPort string
	Args     []string
	Context  diag.FullLoadContext
}

// MotorHandler tracks motor controllers configured by the script.
type MotorHandler struct {
	Controllers map[string]*MotorController
}

func newMotorHandler() *MotorHandler {
	return &MotorHandler{Controllers: make(map[string]*MotorController)}
}

func (h *MotorHandler) Name() string { return "motor" }

// AnnotateRecord marks motor records addressing a known controller through
// their OUT link, such as "@asyn(CTRL,0)".
func (h *MotorHandler) AnnotateRecord(st *ShellState, rec *epics.RecordInstance) {
	if rec.RecordType != "motor" {
		return
	}
	out, ok := rec.Fields["OUT"]
	if !ok {
		return
	}
	m := asynLinkPattern.FindStringSubmatch(out.Value)
	if m == nil {
		return
	}
	ctrl, ok := h.Controllers[m[1]]
	if !ok {
		return
	}
	rec.Annotate(epics.Annotation{
		Handler: h.Name(),
		Kind:    "controller",
		Data: map[string]string{
			"controller": ctrl.Name,
			"command":    ctrl.Command,
			"asyn_port":  ctrl.AsynPort,
		},
	})
}

func createMotorController(command string, nameArg, portArg int) cmdFunc {
	return func(st *ShellState, res *LineResult) error {
		if len(res.Args) <= nameArg {
			return errClass("bad-arguments", "%s requires a controller name", command)
		}
		h, _ := st.handlerNamed("motor").(*MotorHandler)
		if h == nil {
			return errClass("no-handler", "motor handler not registered")
		}
		ctrl := &MotorController{
			Name:    res.Args[nameArg],
			Command: command,
			Args:    res.Args,
			Context: append(diag.FullLoadContext(nil), st.LoadContext...),
		}
		if portArg >= 0 {
			if len(res.Args) <= portArg {
				return errClass("bad-arguments", "%s requires an asyn port", command)
			}
			ctrl.AsynPort = res.Args[portArg]
			// A controller referencing an unconfigured port is a local
			// lookup failure on this line, but the controller is kept.
			if asyn := asynHandler(st); asyn != nil {
				if _, ok := asyn.Ports[ctrl.AsynPort]; !ok {
					h.Controllers[ctrl.Name] = ctrl
					return errClass("unknown-port",
						"%s: asyn port %q is not configured", command, ctrl.AsynPort)
				}
			}
		}
		h.Controllers[ctrl.Name] = ctrl
		res.setMeta("controller", ctrl.Name)
		return nil
	}
}
