package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"geodata/internal/catalog"
	"geodata/internal/dataset"
	"geodata/internal/plugins"
)

// tableView：数据集的完整 JSON 表示
type tableView struct {
	Name   string         `json:"name"`
	Labels []string       `json:"labels"`
	Types  []dataset.Type `json:"types"`
	Rows   [][]any        `json:"rows"`
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"datasets": s.cat.Names()})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	t, ok := s.cat.Get(name)
	if !ok {
		s.fail(w, r, catalog.ErrDatasetNotFound)
		return
	}
	writeJSON(w, http.StatusOK, tableView{Name: name, Labels: t.Labels(), Types: t.Types(), Rows: t.Rows()})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if !s.cat.Delete(chi.URLParam(r, "name")) {
		s.fail(w, r, catalog.ErrDatasetNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type loadRequest struct {
	Plugin string         `json:"plugin"`
	Name   string         `json:"name"`
	Params plugins.Params `json:"params"`
}

func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	var req loadRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.cat.Load(r.Context(), req.Plugin, req.Name, req.Params); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"name": req.Name})
}

type filterRangeRequest struct {
	Source   string `json:"source"`
	Target   string `json:"target"`
	Column   string `json:"column"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
}

func (s *Server) handleFilterRange(w http.ResponseWriter, r *http.Request) {
	var req filterRangeRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.cat.FilterByRange(req.Source, req.Target, req.Column, req.Operator, req.Value); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"name": req.Target})
}

type filterSetRequest struct {
	Source string   `json:"source"`
	Target string   `json:"target"`
	Column string   `json:"column"`
	Values []string `json:"values"`
}

func (s *Server) handleFilterSet(w http.ResponseWriter, r *http.Request) {
	var req filterSetRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.cat.FilterBySet(req.Source, req.Target, req.Column, req.Values); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"name": req.Target})
}

type sortRequest struct {
	Source    string `json:"source"`
	Target    string `json:"target"`
	Column    string `json:"column"`
	Ascending bool   `json:"ascending"`
}

func (s *Server) handleSort(w http.ResponseWriter, r *http.Request) {
	var req sortRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.cat.Sort(req.Source, req.Target, req.Column, req.Ascending); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"name": req.Target})
}

// geocodeRequest：address 与结构化字段二选一，address 非空时按自由文本处理
type geocodeRequest struct {
	Source  string `json:"source"`
	Target  string `json:"target"`
	Prefix  string `json:"prefix"`
	Address string `json:"address"`
	Country string `json:"country"`
	State   string `json:"state"`
	City    string `json:"city"`
	County  string `json:"county"`
	Street  string `json:"street"`
}

func (q geocodeRequest) selection() catalog.AddressSelection {
	if q.Address != "" {
		return catalog.AddressSelection{FreeText: q.Address}
	}
	return catalog.AddressSelection{Fields: [5]string{q.Country, q.State, q.City, q.County, q.Street}}
}

type geocodeResponse struct {
	Name       string   `json:"name"`
	Unresolved []string `json:"unresolved"`
}

func (s *Server) handleGeocode(w http.ResponseWriter, r *http.Request) {
	var req geocodeRequest
	if !decode(w, r, &req) {
		return
	}
	unresolved, err := s.cat.GeocodeAppend(r.Context(), req.Source, req.Target, req.Prefix, req.selection())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if unresolved == nil {
		unresolved = []string{}
	}
	writeJSON(w, http.StatusCreated, geocodeResponse{Name: req.Target, Unresolved: unresolved})
}

func (s *Server) handleFilterConfigs(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.cat.FilterConfigs(chi.URLParam(r, "name"), queryBool(r, "numeric"))
	s.writeConfigs(w, r, cfg, err)
}

func (s *Server) handleSortConfigs(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.cat.SortConfigs(chi.URLParam(r, "name"))
	s.writeConfigs(w, r, cfg, err)
}

func (s *Server) handleGeocodeConfigs(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.cat.GeocodeConfigs(chi.URLParam(r, "name"), queryBool(r, "free_form"))
	s.writeConfigs(w, r, cfg, err)
}

func (s *Server) handleDisplayConfigs(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.cat.DisplayConfigs(chi.URLParam(r, "plugin"), chi.URLParam(r, "name"))
	s.writeConfigs(w, r, cfg, err)
}

type selectionRequest struct {
	Plugin string         `json:"plugin"`
	Params plugins.Params `json:"params"`
}

// handleSelectionChoices：先取展示插件的过滤声明，再给出每个过滤列的候选值
func (s *Server) handleSelectionChoices(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if !decode(w, r, &req) {
		return
	}
	specs, err := s.cat.FilterSpec(req.Plugin, req.Params)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	cfg, err := s.cat.SelectionChoices(chi.URLParam(r, "name"), specs)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"filters": specs, "inputs": cfg})
}

func (s *Server) writeConfigs(w http.ResponseWriter, r *http.Request, cfg []plugins.InputConfig, err error) {
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]plugins.InputConfig{"inputs": cfg})
}

func (s *Server) handlePlugins(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{
		"sources":  s.cat.SourceNames(),
		"displays": s.cat.DisplayNames(),
	})
}

func (s *Server) handleSourceInputs(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.cat.SourceInputSpec(chi.URLParam(r, "plugin"))
	s.writeConfigs(w, r, cfg, err)
}

type renderRequest struct {
	Plugin     string              `json:"plugin"`
	Dataset    string              `json:"dataset"`
	Params     plugins.Params      `json:"params"`
	Selections map[string][]string `json:"selections"`
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	var req renderRequest
	if !decode(w, r, &req) {
		return
	}
	out, err := s.cat.Render(r.Context(), req.Plugin, req.Dataset, req.Params, req.Selections)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"output": out})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "stats store disabled"})
		return
	}
	t, err := s.stats.GetTotals(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}
