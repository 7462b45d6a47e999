package busserver

import (
	"fmt"
	"sort"
	"strings"

	"github.com/godbus/dbus/v5"

	"github.com/yndnr/meshnode-go/internal/core/domain"
	"github.com/yndnr/meshnode-go/internal/telemetry/logger"
	"github.com/yndnr/meshnode-go/internal/telemetry/metric"
	"github.com/yndnr/meshnode-go/pkg/meshmsg"
)

// Interface names.
const (
	ApplicationInterface    = "org.bluez.mesh.Application1"
	ProvisionAgentInterface = "org.bluez.mesh.ProvisionAgent1"
	ElementInterface        = "org.bluez.mesh.Element1"
	ObjectManagerInterface  = "org.freedesktop.DBus.ObjectManager"
)

// JoinHandler receives the daemon's join result.
type JoinHandler interface {
	JoinComplete(token domain.AuthToken) error
	JoinFailed(reason string) error
}

// application implements org.bluez.mesh.Application1.
type application struct {
	join   JoinHandler
	logger logger.Logger
}

func (a *application) JoinComplete(token uint64) *dbus.Error {
	if err := a.join.JoinComplete(domain.AuthToken(token)); err != nil {
		return dbus.MakeFailedError(err)
	}
	return nil
}

func (a *application) JoinFailed(reason string) *dbus.Error {
	if err := a.join.JoinFailed(reason); err != nil {
		return dbus.MakeFailedError(err)
	}
	return nil
}

// agent implements org.bluez.mesh.ProvisionAgent1 with no capabilities.
// Provisioning cryptography is not supported, so every call answers with
// an empty or zero value.
type agent struct {
	logger logger.Logger
}

func (a *agent) PrivateKey() ([]byte, *dbus.Error) {
	a.logger.Debug("agent PrivateKey")
	return []byte{}, nil
}

func (a *agent) PublicKey() ([]byte, *dbus.Error) {
	a.logger.Debug("agent PublicKey")
	return []byte{}, nil
}

func (a *agent) DisplayString(value string) *dbus.Error {
	a.logger.Debug("agent DisplayString", "value", value)
	return nil
}

func (a *agent) DisplayNumeric(kind string, number uint32) *dbus.Error {
	a.logger.Debug("agent DisplayNumeric", "type", kind, "number", number)
	return nil
}

func (a *agent) PromptNumeric(kind string) (uint32, *dbus.Error) {
	a.logger.Debug("agent PromptNumeric", "type", kind)
	return 0, nil
}

func (a *agent) PromptStatic(kind string) ([]byte, *dbus.Error) {
	a.logger.Debug("agent PromptStatic", "type", kind)
	return []byte{}, nil
}

func (a *agent) Cancel() *dbus.Error {
	a.logger.Debug("agent Cancel")
	return nil
}

// element implements org.bluez.mesh.Element1 for one local element.
type element struct {
	index   uint8
	logger  logger.Logger
	metrics *metric.Registry
}

func (e *element) MessageReceived(source, keyIndex uint16, subscription bool, data []byte) *dbus.Error {
	opName := "unknown"
	if op, _, err := meshmsg.ParseOpcode(data); err == nil {
		opName = op.String()
	}
	e.metrics.RecordReceive(opName)
	e.logger.Info("message received",
		"source", fmt.Sprintf("%04x", source),
		"key_index", fmt.Sprintf("%04x", keyIndex),
		"subscription", subscription,
		"opcode", opName,
		"data", fmt.Sprintf("%x", data))
	return nil
}

func (e *element) UpdateModelConfiguration(modelID uint16, config map[string]dbus.Variant) *dbus.Error {
	args := []any{"model", fmt.Sprintf("%04x", modelID)}
	for _, k := range sortedKeys(config) {
		args = append(args, optionKey(k), config[k].Value())
	}
	e.logger.Info("model configuration updated", args...)
	return nil
}

// optionKey turns a daemon option name such as "PublicationPeriod" into a
// log key such as "publication_period".
func optionKey(name string) string {
	var b strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

func sortedKeys(m map[string]dbus.Variant) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// objectManager implements org.freedesktop.DBus.ObjectManager on the root.
type objectManager struct {
	server *Server
}

func (o *objectManager) GetManagedObjects() (map[dbus.ObjectPath]map[string]map[string]dbus.Variant, *dbus.Error) {
	return o.server.ManagedObjects(), nil
}
