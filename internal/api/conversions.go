package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"

	"github.io/infrasutra/emlconvert/internal/convert"
	"github.io/infrasutra/emlconvert/internal/pagination"
	"github.io/infrasutra/emlconvert/internal/store"
)

const multipartMemory = 8 << 20

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r.Context())
	formats, err := convert.ParseFormats(r.URL.Query().Get("output"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "upload exceeds "+humanize.IBytes(uint64(tooLarge.Limit)), http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	uploads, err := readUploads(r.MultipartForm.File["files"])
	if err != nil {
		http.Error(w, "unable to read upload", http.StatusBadRequest)
		return
	}

	result, err := s.converter.Convert(r.Context(), convert.Request{Owner: owner, Uploads: uploads, Formats: formats})
	if err != nil {
		switch {
		case errors.Is(err, context.Canceled):
			return
		case errors.Is(err, convert.ErrNoFiles):
			http.Error(w, "no files uploaded", http.StatusBadRequest)
		case errors.Is(err, convert.ErrNoMessages):
			http.Error(w, "no readable email messages in upload", http.StatusBadRequest)
		default:
			s.logger.Error("convert upload", "owner", owner, "error", err)
			http.Error(w, "conversion failed", http.StatusInternalServerError)
		}
		return
	}

	format, data := result.Primary()
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", format.FileName()))
	w.Header().Set("X-Conversion-Id", result.ID)
	w.Header().Set("X-Record-Count", strconv.Itoa(len(result.Records)))
	if len(result.Skipped) > 0 {
		w.Header().Set("X-Skipped-Files", strconv.Itoa(len(result.Skipped)))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func readUploads(headers []*multipart.FileHeader) ([]convert.Upload, error) {
	uploads := make([]convert.Upload, 0, len(headers))
	for _, header := range headers {
		file, err := header.Open()
		if err != nil {
			return nil, fmt.Errorf("open upload %s: %w", header.Filename, err)
		}
		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			return nil, fmt.Errorf("read upload %s: %w", header.Filename, err)
		}
		uploads = append(uploads, convert.Upload{Name: header.Filename, Data: data})
	}
	return uploads, nil
}

func (s *Server) handleConversions(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r.Context())
	params := pagination.Parse(r.URL.Query())
	conversions, total, err := s.store.ListConversions(r.Context(), owner, params.Sort, params.Offset, params.Limit)
	if err != nil {
		s.logger.Error("list conversions", "owner", owner, "error", err)
		http.Error(w, "unable to list conversions", http.StatusInternalServerError)
		return
	}

	response := struct {
		Conversions []conversionSummary `json:"conversions"`
		Page        pagination.Meta     `json:"page"`
	}{
		Conversions: make([]conversionSummary, 0, len(conversions)),
		Page:        params.Describe(total),
	}
	for _, c := range conversions {
		response.Conversions = append(response.Conversions, conversionSummary{
			ID:        c.ID,
			Name:      c.DisplayName,
			Sources:   c.SourceCount,
			Records:   c.RecordCount,
			Formats:   c.Formats,
			CreatedAt: c.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleConversion(w http.ResponseWriter, r *http.Request) {
	conversion, err := s.store.GetConversion(r.Context(), ownerFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		http.Error(w, "unable to load conversion", http.StatusInternalServerError)
		return
	}

	detail := conversionDetail{
		ID:        conversion.ID,
		Name:      conversion.DisplayName,
		Records:   json.RawMessage("[]"),
		CreatedAt: conversion.CreatedAt.UTC().Format(time.RFC3339),
		Outputs:   []outputSummary{},
		Sources:   []sourceSummary{},
	}
	if len(conversion.Records) > 0 {
		detail.Records = json.RawMessage(conversion.Records)
	}
	for _, output := range conversion.Outputs {
		detail.Outputs = append(detail.Outputs, outputSummary{
			Format:      output.Format,
			ContentType: output.ContentType,
			Size:        output.Size,
			SizeLabel:   humanize.Bytes(uint64(output.Size)),
		})
	}
	for _, source := range conversion.Sources {
		detail.Sources = append(detail.Sources, sourceSummary{
			FileName:  source.FileName,
			Size:      source.Size,
			SizeLabel: humanize.Bytes(uint64(source.Size)),
		})
	}
	s.respondJSON(w, http.StatusOK, detail)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	formats, err := convert.ParseFormats(chi.URLParam(r, "format"))
	if err != nil || len(formats) != 1 {
		http.Error(w, "invalid format", http.StatusBadRequest)
		return
	}
	output, err := s.store.GetOutput(r.Context(), ownerFrom(r.Context()), chi.URLParam(r, "id"), string(formats[0]))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		http.Error(w, "unable to load output", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", output.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", formats[0].FileName()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(output.Data)
}

func (s *Server) handleConversionDelete(w http.ResponseWriter, r *http.Request) {
	deleted, err := s.store.DeleteConversion(r.Context(), ownerFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "unable to delete", http.StatusInternalServerError)
		return
	}
	if !deleted {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type conversionSummary struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Sources   int      `json:"sources"`
	Records   int      `json:"records"`
	Formats   []string `json:"formats"`
	CreatedAt string   `json:"createdAt"`
}

type conversionDetail struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Records   json.RawMessage `json:"records"`
	CreatedAt string          `json:"createdAt"`
	Outputs   []outputSummary `json:"outputs"`
	Sources   []sourceSummary `json:"sources"`
}

type outputSummary struct {
	Format      string `json:"format"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
	SizeLabel   string `json:"sizeLabel"`
}

type sourceSummary struct {
	FileName  string `json:"fileName"`
	Size      int64  `json:"size"`
	SizeLabel string `json:"sizeLabel"`
}
