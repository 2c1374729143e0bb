package script

import (
	"github.com/dop251/goja"

	"github.com/sprintbridge/backend/internal/page"
	"github.com/sprintbridge/backend/internal/shared/codec"
	"github.com/sprintbridge/backend/internal/shared/types"
)

type jsFunc = func(goja.FunctionCall) goja.Value

// builder sets properties on one object, keeping the first error.
type builder struct {
	obj *goja.Object
	err error
}

func (b *builder) set(name string, value any) *builder {
	if b.err == nil {
		b.err = b.obj.Set(name, value)
	}
	return b
}

func (r *Runtime) object() *builder {
	return &builder{obj: r.vm.NewObject()}
}

// namespace builds the SprintManagementExtension object. The tracker and
// docstore objects are also reachable as jira and sharepoint.
func (r *Runtime) namespace() (*goja.Object, error) {
	tracker := r.trackerObject()
	if tracker.err != nil {
		return nil, tracker.err
	}
	docstore := r.docstoreObject()
	if docstore.err != nil {
		return nil, docstore.err
	}
	proxy := r.object().set("fetch", jsFunc(r.fetch))
	if proxy.err != nil {
		return nil, proxy.err
	}

	ns := r.object().
		set("version", r.api.Version).
		set("tracker", tracker.obj).
		set("jira", tracker.obj).
		set("docstore", docstore.obj).
		set("sharepoint", docstore.obj).
		set("proxy", proxy.obj).
		set("ping", jsFunc(func(goja.FunctionCall) goja.Value {
			return r.vm.ToValue(r.api.Ping(r.ctx))
		}))
	return ns.obj, ns.err
}

// throw raises err as a JavaScript Error.
func (r *Runtime) throw(err error) {
	panic(r.vm.NewGoError(err))
}

func (r *Runtime) result(data any, err error) goja.Value {
	if err != nil {
		r.throw(err)
	}
	return r.vm.ToValue(data)
}

func str(call goja.FunctionCall, i int) string {
	arg := call.Argument(i)
	if goja.IsUndefined(arg) || goja.IsNull(arg) {
		return ""
	}
	return arg.String()
}

func credentials(call goja.FunctionCall) page.Credentials {
	return page.Credentials{
		BaseURL:  str(call, 0),
		Username: str(call, 1),
		Password: str(call, 2),
	}
}

// trackerObject mirrors the page tracker API. Every operation takes the
// tracker base URL, username and password first.
func (r *Runtime) trackerObject() *builder {
	t := r.api.Tracker
	return r.object().
		set("request", jsFunc(func(call goja.FunctionCall) goja.Value {
			return r.result(t.Request(r.ctx, types.TrackerRequest{
				URL:      str(call, 0),
				Username: str(call, 1),
				Password: str(call, 2),
				Method:   str(call, 3),
				Body:     call.Argument(4).Export(),
			}))
		})).
		set("login", jsFunc(func(call goja.FunctionCall) goja.Value {
			return r.result(t.Login(r.ctx, credentials(call)))
		})).
		set("getIssues", jsFunc(func(call goja.FunctionCall) goja.Value {
			return r.result(t.GetIssues(r.ctx, credentials(call), str(call, 3), int(call.Argument(4).ToInteger())))
		})).
		set("getIssue", jsFunc(func(call goja.FunctionCall) goja.Value {
			return r.result(t.GetIssue(r.ctx, credentials(call), str(call, 3)))
		})).
		set("addComment", jsFunc(func(call goja.FunctionCall) goja.Value {
			return r.result(t.AddComment(r.ctx, credentials(call), str(call, 3), str(call, 4)))
		})).
		set("getTransitions", jsFunc(func(call goja.FunctionCall) goja.Value {
			return r.result(t.GetTransitions(r.ctx, credentials(call), str(call, 3)))
		})).
		set("transitionIssue", jsFunc(func(call goja.FunctionCall) goja.Value {
			return r.result(t.TransitionIssue(r.ctx, credentials(call), str(call, 3), str(call, 4)))
		})).
		set("getBoards", jsFunc(func(call goja.FunctionCall) goja.Value {
			return r.result(t.GetBoards(r.ctx, credentials(call)))
		})).
		set("getSprints", jsFunc(func(call goja.FunctionCall) goja.Value {
			return r.result(t.GetSprints(r.ctx, credentials(call), str(call, 3)))
		}))
}

func (r *Runtime) docstoreObject() *builder {
	d := r.api.Docstore
	return r.object().
		set("request", jsFunc(func(call goja.FunctionCall) goja.Value {
			return r.result(d.Request(r.ctx, types.DocstoreRequest{
				Endpoint:       str(call, 0),
				Method:         str(call, 1),
				Body:           call.Argument(2).Export(),
				BinaryResponse: call.Argument(3).ToBoolean(),
			}))
		})).
		set("testConnection", jsFunc(func(goja.FunctionCall) goja.Value {
			return r.result(d.TestConnection(r.ctx))
		})).
		set("listFiles", jsFunc(func(call goja.FunctionCall) goja.Value {
			return r.result(d.ListFiles(r.ctx, str(call, 0)))
		})).
		set("downloadFile", jsFunc(func(call goja.FunctionCall) goja.Value {
			return r.result(d.DownloadFile(r.ctx, str(call, 0)))
		}))
}

// fetch implements proxy.fetch(url, options) returning a fetch-like response.
func (r *Runtime) fetch(call goja.FunctionCall) goja.Value {
	var opts types.ProxyOptions
	if raw := call.Argument(1).Export(); raw != nil {
		if err := codec.Convert(raw, &opts); err != nil {
			r.throw(err)
		}
	}

	resp, err := r.api.Proxy.Fetch(r.ctx, str(call, 0), opts)
	if err != nil {
		r.throw(err)
	}

	obj := r.object().
		set("ok", resp.OK).
		set("status", resp.Status).
		set("statusText", resp.StatusText).
		set("headers", resp.Headers).
		set("json", jsFunc(func(goja.FunctionCall) goja.Value {
			return r.vm.ToValue(resp.Data())
		})).
		set("text", jsFunc(func(goja.FunctionCall) goja.Value {
			text, err := resp.Text()
			if err != nil {
				r.throw(err)
			}
			return r.vm.ToValue(text)
		}))
	if obj.err != nil {
		r.throw(obj.err)
	}
	return obj.obj
}
