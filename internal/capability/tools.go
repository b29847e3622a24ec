package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Cyclone1070/agentcore/internal/tool"
)

// ToolPrefix starts the registry name of every server-provided tool.
const ToolPrefix = "mcp__"

// ToolName returns the registry name for a server tool.
func ToolName(server, name string) string {
	return ToolPrefix + server + "__" + name
}

// ParseToolName splits a registry name produced by ToolName.
func ParseToolName(name string) (server, toolName string, ok bool) {
	rest, found := strings.CutPrefix(name, ToolPrefix)
	if !found {
		return "", "", false
	}
	return strings.Cut(rest, "__")
}

// remoteTool dispatches to a server through tools/call.
type remoteTool struct {
	client *Client
	info   ToolInfo
	name   string
}

func newRemoteTool(c *Client, info ToolInfo) *remoteTool {
	return &remoteTool{client: c, info: info, name: ToolName(c.Name(), info.Name)}
}

func (t *remoteTool) Name() string { return t.name }

func (t *remoteTool) Declaration() tool.Declaration {
	desc := t.info.Description
	if desc == "" {
		desc = t.info.Name
	}
	return tool.Declaration{
		Name:        t.name,
		Description: fmt.Sprintf("[%s] %s", t.client.Name(), desc),
		Parameters:  convertSchema(t.info.InputSchema),
	}
}

func (t *remoteTool) PermissionKey(args map[string]any) string { return "" }

func (t *remoteTool) Describe(args map[string]any) string {
	if len(args) == 0 {
		return fmt.Sprintf("%s/%s", t.client.Name(), t.info.Name)
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Sprintf("%s/%s", t.client.Name(), t.info.Name)
	}
	return fmt.Sprintf("%s/%s %s", t.client.Name(), t.info.Name, data)
}

// Execute never returns an error: protocol failures and isError results are
// reported to the backend as failed results.
func (t *remoteTool) Execute(ctx context.Context, args map[string]any) (tool.Result, error) {
	res, err := t.client.CallTool(ctx, t.info.Name, args)
	if err != nil {
		return tool.Failf("%s/%s: %v", t.client.Name(), t.info.Name, err), nil
	}
	if res.IsError {
		return tool.Fail(res.Text()), nil
	}
	return tool.OK(res.Text()), nil
}

// convertSchema maps a JSON Schema object from a server onto tool.Schema.
// Union types collapse to their first non-null member.
func convertSchema(m map[string]any) *tool.Schema {
	if m == nil {
		return &tool.Schema{Type: tool.TypeObject, Properties: map[string]*tool.Schema{}}
	}
	s := &tool.Schema{}
	switch t := m["type"].(type) {
	case string:
		s.Type = tool.Type(t)
	case []any:
		for _, v := range t {
			if str, ok := v.(string); ok && str != "null" {
				s.Type = tool.Type(str)
				break
			}
		}
	}
	if d, ok := m["description"].(string); ok {
		s.Description = d
	}
	if props, ok := m["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*tool.Schema, len(props))
		for name, raw := range props {
			if pm, ok := raw.(map[string]any); ok {
				s.Properties[name] = convertSchema(pm)
			}
		}
	}
	if req, ok := m["required"].([]any); ok {
		for _, r := range req {
			if str, ok := r.(string); ok {
				s.Required = append(s.Required, str)
			}
		}
	}
	if items, ok := m["items"].(map[string]any); ok {
		s.Items = convertSchema(items)
	}
	if enum, ok := m["enum"].([]any); ok {
		for _, e := range enum {
			s.Enum = append(s.Enum, fmt.Sprint(e))
		}
	}

	if s.Type == "" {
		if s.Properties != nil {
			s.Type = tool.TypeObject
		} else {
			s.Type = tool.TypeString
		}
	}
	if s.Type == tool.TypeArray && s.Items == nil {
		s.Items = &tool.Schema{Type: tool.TypeString}
	}
	return s
}

type listResourcesRequest struct {
	Server string `json:"server"`
}

func (r listResourcesRequest) String() string {
	if r.Server == "" {
		return "list resources on all servers"
	}
	return "list resources on " + r.Server
}

func newListResourcesTool(m *Manager) tool.Tool {
	return tool.NewTyped(tool.Declaration{
		Name:        "list_mcp_resources",
		Description: "List resources exposed by connected capability servers.",
		Parameters: &tool.Schema{
			Type: tool.TypeObject,
			Properties: map[string]*tool.Schema{
				"server": {Type: tool.TypeString, Description: "Only list this server's resources."},
			},
		},
	}, func(ctx context.Context, req listResourcesRequest) (tool.Result, error) {
		var b strings.Builder
		for _, st := range m.States() {
			if st.Status != StatusConnected || (req.Server != "" && st.Name != req.Server) {
				continue
			}
			for _, r := range st.Resources {
				fmt.Fprintf(&b, "%s\t%s\t%s", st.Name, r.URI, r.Name)
				if r.Description != "" {
					fmt.Fprintf(&b, " - %s", r.Description)
				}
				b.WriteByte('\n')
			}
		}
		if b.Len() == 0 {
			return tool.OK("No resources found."), nil
		}
		return tool.OK(strings.TrimRight(b.String(), "\n")), nil
	})
}

type readResourceRequest struct {
	Server string `json:"server"`
	URI    string `json:"uri"`
}

func (r readResourceRequest) String() string {
	return fmt.Sprintf("read %s from %s", r.URI, r.Server)
}

func (r *readResourceRequest) Validate() error {
	if r.Server == "" {
		return fmt.Errorf("server is required")
	}
	if r.URI == "" {
		return fmt.Errorf("uri is required")
	}
	return nil
}

func newReadResourceTool(m *Manager) tool.Tool {
	return tool.NewTyped(tool.Declaration{
		Name:        "read_mcp_resource",
		Description: "Read a resource from a connected capability server.",
		Parameters: &tool.Schema{
			Type: tool.TypeObject,
			Properties: map[string]*tool.Schema{
				"server": {Type: tool.TypeString, Description: "Server name."},
				"uri":    {Type: tool.TypeString, Description: "Resource URI."},
			},
			Required: []string{"server", "uri"},
		},
	}, func(ctx context.Context, req readResourceRequest) (tool.Result, error) {
		c, err := m.connected(req.Server)
		if err != nil {
			return tool.Fail(err.Error()), nil
		}
		res, err := c.ReadResource(ctx, req.URI)
		if err != nil {
			return tool.Failf("read %s: %v", req.URI, err), nil
		}
		parts := make([]string, 0, len(res.Contents))
		for _, rc := range res.Contents {
			if rc.Text != "" {
				parts = append(parts, rc.Text)
			} else {
				parts = append(parts, fmt.Sprintf("[binary %s, %d base64 bytes]", rc.MimeType, len(rc.Blob)))
			}
		}
		return tool.OK(strings.Join(parts, "\n")), nil
	})
}
