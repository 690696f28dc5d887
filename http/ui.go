package http

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"go.uber.org/zap"

	"custanalytics/ml"
	"custanalytics/pipeline"
	"custanalytics/present"
)

//go:embed templates/*.html
var templateFS embed.FS

// maxPreviewRows caps how many rows of a batch result are rendered inline.
const maxPreviewRows = 500

func parseTemplates() (*template.Template, error) {
	return template.ParseFS(templateFS, "templates/*.html")
}

type fieldView struct {
	Name    string
	Value   string
	Numeric bool
}

type tableView struct {
	Columns     []string
	Rows        [][]string
	Hidden      int
	DownloadURL string
	Label       string
}

type tabView struct {
	present.Tab
	Fields    []fieldView
	Message   string
	Error     string
	Defaulted []string
	Result    *tableView
}

type pageData struct {
	Title  string
	Active ml.Task
	Tabs   []tabView
}

func (a *API) newPage(active ml.Task) *pageData {
	schema := a.normalizer.Schema()
	page := &pageData{Title: "Customer Analytics App", Active: active}
	for _, tab := range present.Tabs() {
		view := tabView{Tab: tab}
		for _, column := range schema.Numeric {
			view.Fields = append(view.Fields, fieldView{Name: column, Value: "0.0", Numeric: true})
		}
		for _, column := range schema.Categorical {
			view.Fields = append(view.Fields, fieldView{Name: column, Value: ml.DefaultCategorical})
		}
		page.Tabs = append(page.Tabs, view)
	}
	return page
}

func (p *pageData) tab(task ml.Task) *tabView {
	for i := range p.Tabs {
		if p.Tabs[i].Task == task {
			return &p.Tabs[i]
		}
	}
	return nil
}

func (a *API) render(w http.ResponseWriter, status int, page *pageData) {
	var buf bytes.Buffer
	if err := a.pages.ExecuteTemplate(&buf, "index.html", page); err != nil {
		a.logger.Error("render page", zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

func (a *API) handleIndex(w http.ResponseWriter, r *http.Request) {
	active := ml.TaskRevenue
	if name := r.URL.Query().Get("tab"); name != "" {
		if task, err := ml.ParseTask(name); err == nil {
			active = task
		}
	}
	a.render(w, http.StatusOK, a.newPage(active))
}

func (a *API) handleFormPredict(w http.ResponseWriter, r *http.Request) {
	task, err := taskFromPath(r)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	page := a.newPage(task)
	view := page.tab(task)

	if err := r.ParseForm(); err != nil {
		view.Error = err.Error()
		a.render(w, statusFor(err), page)
		return
	}
	fields := make(map[string]string, len(view.Fields))
	for i := range view.Fields {
		field := &view.Fields[i]
		if value, ok := r.PostForm[field.Name]; ok && len(value) > 0 {
			field.Value = value[0]
			fields[field.Name] = value[0]
		}
	}

	resp, err := a.predictEntry(r.Context(), task, fields)
	if err != nil {
		a.logger.Info("form prediction failed", zap.String("task", string(task)), zap.Error(err))
		view.Error = err.Error()
		a.render(w, statusFor(err), page)
		return
	}
	view.Message = resp.Message
	view.Defaulted = resp.Defaulted
	a.render(w, http.StatusOK, page)
}

func (a *API) handleFormUpload(w http.ResponseWriter, r *http.Request) {
	task, err := taskFromPath(r)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	page := a.newPage(task)
	view := page.tab(task)

	upload, charset, err := a.readUpload(r)
	if err != nil {
		view.Error = err.Error()
		a.render(w, statusFor(err), page)
		return
	}
	result, err := a.predictBatch(r.Context(), task, upload, charset)
	if err != nil {
		view.Error = err.Error()
		a.render(w, statusFor(err), page)
		return
	}
	id, err := a.results.Put(task, result)
	if err != nil {
		view.Error = err.Error()
		a.render(w, http.StatusInternalServerError, page)
		return
	}
	view.Result = previewTable(result, "/download/"+id)
	view.Result.Label = view.Download
	a.render(w, http.StatusOK, page)
}

func previewTable(table *pipeline.Table, downloadURL string) *tableView {
	rows := table.Rows()
	hidden := 0
	if len(rows) > maxPreviewRows {
		hidden = len(rows) - maxPreviewRows
		rows = rows[:maxPreviewRows]
	}
	return &tableView{
		Columns:     table.Columns(),
		Rows:        rows,
		Hidden:      hidden,
		DownloadURL: downloadURL,
	}
}
