package ui

import (
	"bytes"
	"encoding/json"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"

	"bondfuzz/adapters/excel"
	"bondfuzz/adapters/report"
	"bondfuzz/domain/core"
	"bondfuzz/internal/errors"
)

func (a *App) handleIndex(limit int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runs, err := a.campaigns.ListRuns(r.Context(), limit)
		if err != nil {
			a.fail(w, err)
			return
		}
		a.render(w, "index.html", map[string]interface{}{
			"Title": "Measurement runs",
			"Runs":  runs,
		})
	}
}

func (a *App) handleRun(w http.ResponseWriter, r *http.Request) {
	doc, ok := a.document(w, r)
	if !ok {
		return
	}
	a.render(w, "run.html", map[string]interface{}{
		"Title":  doc.Title,
		"RunID":  doc.RunID,
		"Report": template.HTML(report.HTMLFragment(report.Markdown(doc))),
	})
}

func (a *App) handleRunMarkdown(w http.ResponseWriter, r *http.Request) {
	doc, ok := a.document(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	_, _ = w.Write(report.Markdown(doc))
}

func (a *App) handleRunWorkbook(w http.ResponseWriter, r *http.Request) {
	doc, ok := a.document(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if _, err := excel.NewWorkbookWriter(doc).WriteTo(&buf); err != nil {
		a.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+doc.RunID+`.xlsx"`)
	_, _ = buf.WriteTo(w)
}

func (a *App) handleListRuns(limit int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runs, err := a.campaigns.ListRuns(r.Context(), limit)
		if err != nil {
			a.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"runs": runs})
	}
}

func (a *App) handleRunJSON(w http.ResponseWriter, r *http.Request) {
	doc, ok := a.document(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// document loads the run named in the URL, writing the error response itself on failure
func (a *App) document(w http.ResponseWriter, r *http.Request) (*report.Document, bool) {
	id, err := core.ParseRunID(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return nil, false
	}
	doc, err := a.campaigns.RunDocument(r.Context(), id)
	if err != nil {
		a.fail(w, err)
		return nil, false
	}
	return doc, true
}

// render executes into a buffer first so template errors never produce half a page
func (a *App) render(w http.ResponseWriter, name string, data interface{}) {
	var buf bytes.Buffer
	if err := a.templates.ExecuteTemplate(&buf, name, data); err != nil {
		a.logger.Error("template %s: %v", name, err)
		http.Error(w, "template rendering failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func (a *App) fail(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.HasCode(err, errors.CodeNotFound) {
		status = http.StatusNotFound
	} else {
		a.logger.Error("viewer: %v", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error(), "code": errors.GetCode(err)})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
