package erpnext

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// GetList lists documents of doctype
func (c *Client) GetList(ctx context.Context, sid, doctype string, q ListQuery) ([]Document, error) {
	values, err := q.values()
	if err != nil {
		return nil, err
	}
	resp, err := c.do(ctx, request{
		op:      "get_list",
		method:  http.MethodGet,
		path:    resourcePath(doctype),
		query:   values,
		sid:     sid,
		doctype: doctype,
	})
	if err != nil {
		return nil, err
	}
	var docs []Document
	if err := decodeEnvelope(resp.body, "data", &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// Count returns the number of documents matching filters
func (c *Client) Count(ctx context.Context, sid, doctype string, filters []Filter) (int, error) {
	values := url.Values{"doctype": {doctype}}
	if err := setFilters(values, "filters", filters); err != nil {
		return 0, err
	}
	resp, err := c.do(ctx, request{
		op:      "get_count",
		method:  http.MethodGet,
		path:    methodPath("frappe.client.get_count"),
		query:   values,
		sid:     sid,
		doctype: doctype,
	})
	if err != nil {
		return 0, err
	}
	var n json.Number
	if err := decodeEnvelope(resp.body, "message", &n); err != nil {
		return 0, err
	}
	count, err := n.Int64()
	if err != nil {
		return 0, &Error{Status: resp.status, Message: "non-integer count " + n.String(), kind: ErrInvalidResponse}
	}
	return int(count), nil
}

// CountMatching counts documents matching filters and any of orFilters.
// get_count has no or_filters, so the count runs as an aggregate list query.
func (c *Client) CountMatching(ctx context.Context, sid, doctype string, filters, orFilters []Filter) (int, error) {
	if len(orFilters) == 0 {
		return c.Count(ctx, sid, doctype, filters)
	}
	rows, err := c.GetList(ctx, sid, doctype, ListQuery{
		Fields:     []string{"count(name) as total"},
		Filters:    filters,
		OrFilters:  orFilters,
		PageLength: 1,
	})
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Int("total"), nil
}

// GetDoc fetches one document
func (c *Client) GetDoc(ctx context.Context, sid, doctype, name string) (Document, error) {
	resp, err := c.do(ctx, request{
		op:      "get_doc",
		method:  http.MethodGet,
		path:    resourcePath(doctype, name),
		sid:     sid,
		doctype: doctype,
	})
	if err != nil {
		return nil, err
	}
	return decodeDoc(resp.body, "data")
}

// InsertDoc creates a document and returns it as stored
func (c *Client) InsertDoc(ctx context.Context, sid, doctype string, doc map[string]any) (Document, error) {
	resp, err := c.do(ctx, request{
		op:      "insert_doc",
		method:  http.MethodPost,
		path:    resourcePath(doctype),
		body:    doc,
		sid:     sid,
		doctype: doctype,
	})
	if err != nil {
		return nil, err
	}
	return decodeDoc(resp.body, "data")
}

// UpdateDoc applies a partial update
func (c *Client) UpdateDoc(ctx context.Context, sid, doctype, name string, fields map[string]any) (Document, error) {
	resp, err := c.do(ctx, request{
		op:      "update_doc",
		method:  http.MethodPut,
		path:    resourcePath(doctype, name),
		body:    fields,
		sid:     sid,
		doctype: doctype,
	})
	if err != nil {
		return nil, err
	}
	return decodeDoc(resp.body, "data")
}

// DeleteDoc deletes a draft or cancelled document
func (c *Client) DeleteDoc(ctx context.Context, sid, doctype, name string) error {
	_, err := c.do(ctx, request{
		op:      "delete_doc",
		method:  http.MethodDelete,
		path:    resourcePath(doctype, name),
		sid:     sid,
		doctype: doctype,
	})
	return err
}

// SubmitDoc submits a draft. frappe.client.submit wants the full document,
// so it is fetched first; the modified timestamp guards concurrent edits.
func (c *Client) SubmitDoc(ctx context.Context, sid, doctype, name string) (Document, error) {
	doc, err := c.GetDoc(ctx, sid, doctype, name)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(ctx, request{
		op:      "submit_doc",
		method:  http.MethodPost,
		path:    methodPath("frappe.client.submit"),
		body:    map[string]any{"doc": doc},
		sid:     sid,
		doctype: doctype,
	})
	if err != nil {
		return nil, err
	}
	return decodeDoc(resp.body, "message")
}

// CancelDoc cancels a submitted document
func (c *Client) CancelDoc(ctx context.Context, sid, doctype, name string) error {
	_, err := c.do(ctx, request{
		op:      "cancel_doc",
		method:  http.MethodPost,
		path:    methodPath("frappe.client.cancel"),
		body:    map[string]any{"doctype": doctype, "name": name},
		sid:     sid,
		doctype: doctype,
	})
	return err
}

// CallMethod invokes a whitelisted server method and returns its raw message
func (c *Client) CallMethod(ctx context.Context, sid, method string, params map[string]any) (json.RawMessage, error) {
	if params == nil {
		params = map[string]any{}
	}
	resp, err := c.do(ctx, request{
		op:     "call_method",
		method: http.MethodPost,
		path:   methodPath(method),
		body:   params,
		sid:    sid,
	})
	if err != nil {
		return nil, err
	}
	var msg json.RawMessage
	if err := decodeEnvelope(resp.body, "message", &msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// DownloadPDF renders a document with printFormat ("" for the doctype default)
func (c *Client) DownloadPDF(ctx context.Context, sid, doctype, name, printFormat string) ([]byte, error) {
	values := url.Values{"doctype": {doctype}, "name": {name}, "no_letterhead": {"0"}}
	if printFormat != "" {
		values.Set("format", printFormat)
	}
	resp, err := c.do(ctx, request{
		op:      "download_pdf",
		method:  http.MethodGet,
		path:    methodPath("frappe.utils.print_format.download_pdf"),
		query:   values,
		sid:     sid,
		doctype: doctype,
	})
	if err != nil {
		return nil, err
	}
	ct := resp.header.Get("Content-Type")
	if !strings.HasPrefix(ct, "application/pdf") && !bytes.HasPrefix(resp.body, []byte("%PDF")) {
		return nil, &Error{Status: resp.status, Message: fmt.Sprintf("expected a PDF, got %q", ct), kind: ErrInvalidResponse}
	}
	return resp.body, nil
}

func decodeDoc(body []byte, key string) (Document, error) {
	var doc Document
	if err := decodeEnvelope(body, key, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, &Error{Message: "empty document", kind: ErrInvalidResponse}
	}
	return doc, nil
}
