package marshal

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ValentinKolb/dREST/lib/document"
	"github.com/ValentinKolb/dREST/lib/handler"
	"github.com/ValentinKolb/dREST/lib/model"
	"github.com/ValentinKolb/dREST/lib/query"
	"github.com/ValentinKolb/dREST/lib/store"
)

const (
	// ListNodeName wraps multi-entity request and response documents.
	ListNodeName = "list"
	// OffsetAttrName carries the next-page token on list responses
	// (empty when there is no further page).
	OffsetAttrName = "offset"
	// ETagAttrName carries the entity's concurrency token.
	ETagAttrName = "etag"

	xmlnsAttrName = "xmlns"
)

// --------------------------------------------------------------------------
// Marshaler
// --------------------------------------------------------------------------

// Marshaler converts entities of one registered type to and from
// document trees and executes queries for that type. Handlers are
// resolved once at construction; a Marshaler is immutable afterwards
// and safe for concurrent use.
type Marshaler struct {
	name  string
	alias map[string]bool // additional accepted element names
	reg   *model.Registration
	store store.IEntityStore

	key      handler.IPropertyHandler
	handlers map[string]handler.IPropertyHandler // wire name -> handler
	order    []string                            // declared wire names, definition order
	props    map[string]string                   // property name -> wire name
}

// NewMarshaler builds the marshaler for a registered type. Every
// declared property resolves its handler here; name collisions after
// wire-name cleansing are rejected.
func NewMarshaler(name string, reg *model.Registration, s store.IEntityStore) (*Marshaler, error) {
	m := &Marshaler{
		name:     name,
		alias:    map[string]bool{},
		reg:      reg,
		store:    s,
		key:      handler.NewKeyHandler(),
		handlers: map[string]handler.IPropertyHandler{},
		props:    map[string]string{},
	}
	for i := range reg.Def.Props {
		def := &reg.Def.Props[i]
		wireName := model.CleanseName(def.Name)
		if wireName == handler.KeyPropertyName {
			return nil, fmt.Errorf("type %s: property name %q is reserved", name, def.Name)
		}
		if _, ok := m.handlers[wireName]; ok {
			return nil, fmt.Errorf("type %s: duplicate property name %s", name, wireName)
		}
		m.handlers[wireName] = handler.ForProperty(def)
		m.order = append(m.order, wireName)
		m.props[def.Name] = wireName
	}
	return m, nil
}

// Name returns the type's wire (path) name.
func (m *Marshaler) Name() string { return m.name }

// AllowElementName registers an additional accepted element name for
// deserialization, e.g. the namespace-qualified alias of the type
// name. Must be called before the marshaler is shared.
func (m *Marshaler) AllowElementName(name string) { m.alias[name] = true }

// Registration returns the type's registration.
func (m *Marshaler) Registration() *model.Registration { return m.reg }

// Handler returns the property handler for a wire name. Undeclared
// names resolve to a dynamic handler on dynamic types and are an error
// otherwise.
func (m *Marshaler) Handler(wireName string) (handler.IPropertyHandler, error) {
	if wireName == handler.KeyPropertyName {
		return m.key, nil
	}
	if h, ok := m.handlers[wireName]; ok {
		return h, nil
	}
	if m.reg.Def.Dynamic {
		return handler.NewDynamicHandler(wireName), nil
	}
	return nil, fmt.Errorf("type %s has no property %s", m.name, wireName)
}

// --------------------------------------------------------------------------
// Serialization
// --------------------------------------------------------------------------

// SerializeOpts carries per-request serialization options.
type SerializeOpts struct {
	// IncludeProps restricts output to the listed wire names (the key
	// is always written). Nil means all properties.
	IncludeProps []string

	// Namespace, when set, is emitted as an xmlns attribute on every
	// entity element.
	Namespace string

	// Write carries the handler-level write options (blob info
	// expansion).
	Write handler.WriteOpts
}

// Serialize appends the document node for one entity. The key is
// written first, declared properties follow in definition order and
// dynamic properties come last in name order. An entity with a cached
// ETag carries it as an attribute.
func (m *Marshaler) Serialize(parent *document.Node, e *model.Entity, opts SerializeOpts) *document.Node {
	node := parent.Append(m.name)
	if opts.Namespace != "" {
		node.SetAttr(xmlnsAttrName, opts.Namespace)
	}
	if e.ETag != "" {
		node.SetAttr(ETagAttrName, e.ETag)
	}

	var include map[string]bool
	if opts.IncludeProps != nil {
		include = make(map[string]bool, len(opts.IncludeProps))
		for _, name := range opts.IncludeProps {
			include[name] = true
		}
	}

	m.key.WriteValue(node, handler.KeyPropertyName, e, opts.Write)

	for _, wireName := range m.order {
		if include != nil && !include[wireName] {
			continue
		}
		m.handlers[wireName].WriteValue(node, wireName, e, opts.Write)
	}

	if m.reg.Def.Dynamic {
		names := make([]string, 0, len(e.Dynamic))
		for name := range e.Dynamic {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			wireName := model.CleanseName(name)
			if include != nil && !include[wireName] {
				continue
			}
			handler.NewDynamicHandler(name).WriteValue(node, wireName, e, opts.Write)
		}
	}
	return node
}

// SerializeList builds a list document around the given entities. next
// is the pagination token for the following page, empty when done.
func (m *Marshaler) SerializeList(entities []*model.Entity, next string, opts SerializeOpts) *document.Node {
	list := document.NewNode(ListNodeName)
	list.IsList = true
	list.SetAttr(OffsetAttrName, next)
	for _, e := range entities {
		m.Serialize(list, e, opts)
	}
	return list
}

// --------------------------------------------------------------------------
// Deserialization
// --------------------------------------------------------------------------

// Deserialize parses an entity document node into a property map keyed
// by property name, plus the key carried in the body (empty if none).
// Wire names starting with '_' are ignored; undeclared properties are
// an error unless the type is dynamic. Explicit clears arrive as null
// values; Apply turns them into property removals.
func (m *Marshaler) Deserialize(node *document.Node) (key string, props map[string]model.Value, err error) {
	if node.Name != m.name && !m.alias[node.Name] {
		return "", nil, fmt.Errorf("expected %s element, got %s", m.name, node.Name)
	}

	props = map[string]model.Value{}
	for _, child := range node.Children {
		if strings.HasPrefix(child.Name, "_") {
			continue
		}
		if child.Name == handler.KeyPropertyName {
			key = strings.TrimSpace(child.Text)
			continue
		}
		h, err := m.Handler(child.Name)
		if err != nil {
			return "", nil, err
		}
		if err := h.ReadValue(props, child); err != nil {
			return "", nil, err
		}
	}
	return key, props, nil
}

// Apply writes a deserialized property map onto an entity. A replace
// first resets declared properties to their defaults and drops all
// dynamic properties. Null values remove the property.
func (m *Marshaler) Apply(e *model.Entity, props map[string]model.Value, replace bool) {
	if replace {
		for i := range m.reg.Def.Props {
			def := &m.reg.Def.Props[i]
			if def.Default != nil {
				e.Props[def.Name] = *def.Default
			} else {
				delete(e.Props, def.Name)
			}
		}
		e.Dynamic = map[string]model.Value{}
	}

	for name, v := range props {
		target := e.Dynamic
		if _, declared := m.reg.Def.Prop(name); declared {
			target = e.Props
		}
		if v.IsNull() {
			delete(target, name)
		} else {
			target[name] = v
		}
	}
}

// --------------------------------------------------------------------------
// Schema
// --------------------------------------------------------------------------

// NewSchemaRoot creates the document root for schema responses.
func NewSchemaRoot() *document.Node {
	root := document.NewNode(handler.XSDSchemaName)
	root.SetAttr(xmlnsAttrName+":"+handler.XSDPrefix, handler.XSDNamespace)
	return root
}

// WriteSchema appends the type's schema description: an element
// declaration with an optional documentation annotation, the key
// element, one element per declared property and an open-content
// wildcard for dynamic types.
func (m *Marshaler) WriteSchema(parent *document.Node) *document.Node {
	el := parent.Append(handler.XSDElementName)
	el.SetAttr("name", m.name)

	if m.reg.Def.Doc != "" {
		el.Append(handler.XSDAnnotationName).AppendText(handler.XSDDocName, m.reg.Def.Doc)
	}

	seq := handler.XSDAppendSequence(el)
	m.key.WriteSchema(seq, handler.KeyPropertyName)
	for _, wireName := range m.order {
		m.handlers[wireName].WriteSchema(seq, wireName)
	}
	if m.reg.Def.Dynamic {
		any := seq.Append(handler.XSDAnyName)
		any.SetAttr(handler.XSDAttrNamespace, handler.XSDAnyNamespace)
		any.SetAttr(handler.XSDAttrProcessContents, handler.XSDLaxContents)
		any.SetAttr(handler.XSDAttrMinOccurs, handler.XSDNoMin)
		any.SetAttr(handler.XSDAttrMaxOccurs, handler.XSDNoMax)
	}
	return el
}

// --------------------------------------------------------------------------
// Queries
// --------------------------------------------------------------------------

// ResolveQueryField implements query.Resolver for this type: the key
// property maps to the key sentinel field, declared properties must be
// queryable, and undeclared names are permitted on dynamic types with
// guessed operand coercion.
func (m *Marshaler) ResolveQueryField(name string) (string, func(string) (model.Value, error), error) {
	if name == handler.KeyPropertyName || name == handler.KeyQueryField {
		return handler.KeyQueryField, m.key.ValueForQuery, nil
	}
	if h, ok := m.handlers[name]; ok {
		if !h.CanQuery() {
			return "", nil, fmt.Errorf("cannot filter on property %s of type %s", name, m.name)
		}
		return h.QueryField(), h.ValueForQuery, nil
	}
	if m.reg.Def.Dynamic {
		return name, func(s string) (model.Value, error) {
			return handler.GuessQueryValue(s), nil
		}, nil
	}
	return "", nil, fmt.Errorf("type %s has no property %s", m.name, name)
}

// Query runs a paginated fetch. With cursor support the store's
// continuation token is exposed when the page came back full; without
// it one extra entity is fetched to detect a further page and a
// numeric next-offset token is returned instead. An explicitly
// supplied numeric offset always takes the offset strategy, even on a
// cursor-capable store.
func (m *Marshaler) Query(q *query.Query) ([]*model.Entity, string, error) {
	if !q.HasOffset && m.store.SupportsFeature(store.FeatureCursors) {
		page, err := m.store.Query(m.name, q)
		if err != nil {
			return nil, "", err
		}
		next := ""
		if len(page.Entities) == q.PageSize && page.Cursor != "" {
			next = query.CursorPrefix + page.Cursor
		}
		return page.Entities, next, nil
	}

	// overfetch by one to detect a further page
	overfetch := *q
	overfetch.PageSize = q.PageSize + 1
	page, err := m.store.Query(m.name, &overfetch)
	if err != nil {
		return nil, "", err
	}
	next := ""
	entities := page.Entities
	if len(entities) > q.PageSize {
		entities = entities[:q.PageSize]
		next = strconv.Itoa(q.Offset + q.PageSize)
	}
	return entities, next, nil
}

// DeleteMatching removes every entity matching the query's filter.
func (m *Marshaler) DeleteMatching(q *query.Query) (int, error) {
	if !m.store.SupportsFeature(store.FeatureBulkDelete) {
		return 0, store.NewError(store.RetCUnsupportedOperation, "store does not support bulk delete")
	}
	return m.store.DeleteMatching(m.name, q)
}
