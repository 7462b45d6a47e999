package busserver

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/godbus/dbus/v5/prop"

	"github.com/yndnr/meshnode-go/internal/core/domain"
	"github.com/yndnr/meshnode-go/internal/telemetry/logger"
	"github.com/yndnr/meshnode-go/internal/telemetry/metric"
)

// Config configures a Server.
type Config struct {
	// AppPath is the root of the exported tree.
	AppPath string

	// Elements are exported under AppPath/<index>.
	Elements []domain.Element

	Logger  logger.Logger
	Metrics *metric.Registry
}

// vendorModel is the a(qq) wire form of domain.VendorModel.
type vendorModel struct {
	CompanyID uint16
	ModelID   uint16
}

// Server owns the exported object tree.
type Server struct {
	conn     *dbus.Conn
	appPath  dbus.ObjectPath
	elements []domain.Element
	join     JoinHandler
	logger   logger.Logger
	metrics  *metric.Registry

	mu       sync.Mutex
	exported bool
}

// New prepares a Server. Nothing is exported until Export.
func New(conn *dbus.Conn, cfg Config, join JoinHandler) (*Server, error) {
	if !dbus.ObjectPath(cfg.AppPath).IsValid() || cfg.AppPath == "/" {
		return nil, domain.ErrInvalidArgument.WithDetails(fmt.Sprintf("invalid application path %q", cfg.AppPath))
	}
	if join == nil {
		return nil, domain.ErrInvalidArgument.WithDetails("join handler is required")
	}
	elements, err := domain.NewElements(cfg.Elements)
	if err != nil {
		return nil, err
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Default()
	}
	return &Server{
		conn:     conn,
		appPath:  dbus.ObjectPath(cfg.AppPath),
		elements: elements,
		join:     join,
		logger:   log.With("component", "busserver"),
		metrics:  cfg.Metrics,
	}, nil
}

// AppPath returns the root path.
func (s *Server) AppPath() dbus.ObjectPath {
	return s.appPath
}

func (s *Server) elementPath(index uint8) dbus.ObjectPath {
	return dbus.ObjectPath(domain.ElementPath(string(s.appPath), index))
}

// rootProperties returns the property values of the root object.
func (s *Server) rootProperties() map[string]map[string]dbus.Variant {
	return map[string]map[string]dbus.Variant{
		ApplicationInterface: {
			"CompanyID": dbus.MakeVariant(domain.CompanyID),
			"ProductID": dbus.MakeVariant(domain.ProductID),
			"VersionID": dbus.MakeVariant(domain.VersionID),
		},
		ProvisionAgentInterface: {
			"Capabilities":  dbus.MakeVariant([]string{}),
			"OutOfBandInfo": dbus.MakeVariant([]string{}),
			"URI":           dbus.MakeVariant(""),
		},
	}
}

// elementProperties returns the property values of one element object.
func elementProperties(e domain.Element) map[string]map[string]dbus.Variant {
	models := e.Models
	if models == nil {
		models = []uint16{}
	}
	vendor := make([]vendorModel, 0, len(e.VendorModels))
	for _, vm := range e.VendorModels {
		vendor = append(vendor, vendorModel{CompanyID: vm.CompanyID, ModelID: vm.ModelID})
	}
	return map[string]map[string]dbus.Variant{
		ElementInterface: {
			"Index":        dbus.MakeVariant(e.Index),
			"Location":     dbus.MakeVariant(e.Location),
			"Models":       dbus.MakeVariant(models),
			"VendorModels": dbus.MakeVariant(vendor),
		},
	}
}

// ManagedObjects returns the GetManagedObjects reply for the tree.
func (s *Server) ManagedObjects() map[dbus.ObjectPath]map[string]map[string]dbus.Variant {
	out := make(map[dbus.ObjectPath]map[string]map[string]dbus.Variant, len(s.elements)+1)
	out[s.appPath] = s.rootProperties()
	for _, e := range s.elements {
		out[s.elementPath(e.Index)] = elementProperties(e)
	}
	return out
}

// propMap converts static property values into a read-only prop.Map.
func propMap(values map[string]map[string]dbus.Variant) prop.Map {
	m := make(prop.Map, len(values))
	for iface, props := range values {
		m[iface] = make(map[string]*prop.Prop, len(props))
		for name, v := range props {
			m[iface][name] = &prop.Prop{Value: v.Value(), Writable: false, Emit: prop.EmitInvalidates}
		}
	}
	return m
}

// exportedObject is one object of the tree with its method handlers.
type exportedObject struct {
	path     dbus.ObjectPath
	handlers map[string]any
	props    map[string]map[string]dbus.Variant
	children []string
	signals  map[string][]introspect.Signal
}

func (s *Server) objects() []exportedObject {
	children := make([]string, 0, len(s.elements))
	for _, e := range s.elements {
		children = append(children, fmt.Sprint(e.Index))
	}

	root := exportedObject{
		path: s.appPath,
		handlers: map[string]any{
			ApplicationInterface:    &application{join: s.join, logger: s.logger},
			ProvisionAgentInterface: &agent{logger: s.logger.With("interface", "agent")},
			ObjectManagerInterface:  &objectManager{server: s},
		},
		props:    s.rootProperties(),
		children: children,
		signals: map[string][]introspect.Signal{
			ObjectManagerInterface: {
				{Name: "InterfacesAdded", Args: []introspect.Arg{
					{Name: "object", Type: "o"},
					{Name: "interfaces", Type: "a{sa{sv}}"},
				}},
				{Name: "InterfacesRemoved", Args: []introspect.Arg{
					{Name: "object", Type: "o"},
					{Name: "interfaces", Type: "as"},
				}},
			},
		},
	}

	out := []exportedObject{root}
	for _, e := range s.elements {
		out = append(out, exportedObject{
			path: s.elementPath(e.Index),
			handlers: map[string]any{
				ElementInterface: &element{
					index:   e.Index,
					logger:  s.logger.With("element", e.Index),
					metrics: s.metrics,
				},
			},
			props: elementProperties(e),
		})
	}
	return out
}

// introspection builds the Introspectable node for obj.
func introspection(obj exportedObject, props *prop.Properties) *introspect.Node {
	node := &introspect.Node{
		Name: string(obj.path),
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			prop.IntrospectData,
		},
	}
	for _, iface := range sortedIfaces(obj.handlers) {
		ii := introspect.Interface{
			Name:    iface,
			Methods: introspect.Methods(obj.handlers[iface]),
			Signals: obj.signals[iface],
		}
		if props != nil {
			if _, ok := obj.props[iface]; ok {
				ii.Properties = props.Introspection(iface)
			}
		}
		node.Interfaces = append(node.Interfaces, ii)
	}
	for _, c := range obj.children {
		node.Children = append(node.Children, introspect.Node{Name: c})
	}
	return node
}

func sortedIfaces(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Export publishes the tree and announces every object with
// InterfacesAdded. Calling Export twice is an error.
func (s *Server) Export() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exported {
		return domain.ErrInvalidState.WithDetails("application already exported")
	}

	objs := s.objects()
	for _, obj := range objs {
		for iface, h := range obj.handlers {
			if err := s.conn.Export(h, obj.path, iface); err != nil {
				return fmt.Errorf("export %s %s: %w", obj.path, iface, err)
			}
		}
		props, err := prop.Export(s.conn, obj.path, propMap(obj.props))
		if err != nil {
			return fmt.Errorf("export properties %s: %w", obj.path, err)
		}
		node := introspection(obj, props)
		if err := s.conn.Export(introspect.NewIntrospectable(node), obj.path, "org.freedesktop.DBus.Introspectable"); err != nil {
			return fmt.Errorf("export introspection %s: %w", obj.path, err)
		}
	}
	s.exported = true

	for _, obj := range objs {
		if err := s.conn.Emit(s.appPath, ObjectManagerInterface+".InterfacesAdded", obj.path, obj.props); err != nil {
			s.logger.Warn("InterfacesAdded not emitted", "path", string(obj.path), "error", err)
		}
	}

	s.logger.Info("application exported", "path", string(s.appPath), "elements", len(s.elements))
	return nil
}

// Unexport removes the tree and announces InterfacesRemoved.
func (s *Server) Unexport() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.exported {
		return nil
	}

	var errs []error
	objs := s.objects()
	for i := len(objs) - 1; i >= 0; i-- {
		obj := objs[i]
		ifaces := make([]string, 0, len(obj.props))
		for iface := range obj.props {
			ifaces = append(ifaces, iface)
		}
		slices.Sort(ifaces)
		if err := s.conn.Emit(s.appPath, ObjectManagerInterface+".InterfacesRemoved", obj.path, ifaces); err != nil {
			errs = append(errs, err)
		}

		for iface := range obj.handlers {
			if err := s.conn.Export(nil, obj.path, iface); err != nil {
				errs = append(errs, err)
			}
		}
		for _, iface := range []string{"org.freedesktop.DBus.Properties", "org.freedesktop.DBus.Introspectable"} {
			if err := s.conn.Export(nil, obj.path, iface); err != nil {
				errs = append(errs, err)
			}
		}
	}
	s.exported = false
	return errors.Join(errs...)
}
