package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	descInitialSync = "Initial sync"
	descSnapshot    = "Manual snapshot"
)

// diagramHeader is the part of a pushed document the server inspects. The
// document itself is stored verbatim minus the transport-only keys.
type diagramHeader struct {
	ID              string            `json:"id" binding:"required"`
	Name            string            `json:"name" binding:"required"`
	DatabaseType    string            `json:"databaseType"`
	DatabaseEdition string            `json:"databaseEdition"`
	Description     string            `json:"description"`
	Tables          []json.RawMessage `json:"tables"`
}

// transportKeys never become part of a stored version.
var transportKeys = []string{"description", "version", "server_id"}

type diagramInfo struct {
	ID           uint   `json:"id"`
	DiagramID    string `json:"diagram_id"`
	Name         string `json:"name"`
	DatabaseType string `json:"database_type"`
	Version      int    `json:"version"`
	TableCount   int    `json:"table_count"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

type versionInfo struct {
	ID          uint   `json:"id"`
	Version     int    `json:"version"`
	Description string `json:"description"`
	CreatedAt   string `json:"created_at"`
}

// httpError carries a status out of a transaction closure.
type httpError struct {
	status int
	msg    string
}

func (e *httpError) Error() string { return e.msg }

func (s *Server) fail(c *gin.Context, op string, err error) {
	var he *httpError
	if errors.As(err, &he) {
		abortError(c, he.status, he.msg)
		return
	}
	s.internalError(c, op, err)
}

// bindDiagram validates the request body and returns its header and the
// document to store.
func bindDiagram(c *gin.Context) (*diagramHeader, string, bool) {
	raw, err := c.GetRawData()
	if err != nil {
		abortError(c, http.StatusBadRequest, err.Error())
		return nil, "", false
	}

	var hdr diagramHeader
	if err := json.Unmarshal(raw, &hdr); err != nil {
		abortError(c, http.StatusBadRequest, err.Error())
		return nil, "", false
	}
	if err := binding.Validator.ValidateStruct(&hdr); err != nil {
		abortError(c, http.StatusBadRequest, err.Error())
		return nil, "", false
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		abortError(c, http.StatusBadRequest, err.Error())
		return nil, "", false
	}
	for _, k := range transportKeys {
		delete(doc, k)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		abortError(c, http.StatusInternalServerError, "Failed to serialize diagram")
		return nil, "", false
	}
	return &hdr, string(data), true
}

func (d *Diagram) apply(hdr *diagramHeader) {
	d.Name = hdr.Name
	d.DatabaseType = hdr.DatabaseType
	d.DatabaseEdition = hdr.DatabaseEdition
	d.TableCount = len(hdr.Tables)
}

// pushDiagram stores a new version on every call.
func (s *Server) pushDiagram(c *gin.Context) {
	hdr, data, ok := bindDiagram(c)
	if !ok {
		return
	}
	userID := c.GetUint(ctxUserID)

	var (
		d       Diagram
		created bool
	)
	err := s.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Unscoped().Where("user_id = ? AND diagram_id = ?", userID, hdr.ID).First(&d).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			created = true
			d = Diagram{UserID: userID, DiagramID: hdr.ID, Version: 1}
			d.apply(hdr)
			if err := tx.Create(&d).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			if d.DeletedAt.Valid {
				d.DeletedAt = gorm.DeletedAt{}
				d.Version = 1
			} else {
				d.Version++
			}
			d.apply(hdr)
			if err := tx.Unscoped().Save(&d).Error; err != nil {
				return err
			}
		}

		v := DiagramVersion{DiagramID: d.ID, Version: d.Version, Data: data, Description: hdr.Description}
		if err := tx.Create(&v).Error; err != nil {
			return err
		}
		return s.pruneVersions(tx, d.ID)
	})
	if err != nil {
		s.fail(c, "push diagram", err)
		return
	}

	if created {
		c.JSON(http.StatusCreated, gin.H{
			"message":    "Diagram created successfully",
			"diagram_id": d.DiagramID,
			"version":    d.Version,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":    "Diagram updated successfully",
		"diagram_id": d.DiagramID,
		"version":    d.Version,
	})
}

// syncDiagram overwrites the latest version in place. A missing or deleted
// diagram starts over at version 1.
func (s *Server) syncDiagram(c *gin.Context) {
	hdr, data, ok := bindDiagram(c)
	if !ok {
		return
	}
	userID := c.GetUint(ctxUserID)

	var (
		d     Diagram
		isNew bool
	)
	err := s.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Unscoped().Where("user_id = ? AND diagram_id = ?", userID, hdr.ID).First(&d).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			isNew = true
			d = Diagram{UserID: userID, DiagramID: hdr.ID, Version: 1}
			d.apply(hdr)
			if err := tx.Create(&d).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		case d.DeletedAt.Valid:
			isNew = true
			d.DeletedAt = gorm.DeletedAt{}
			d.Version = 1
			d.apply(hdr)
			if err := tx.Unscoped().Save(&d).Error; err != nil {
				return err
			}
		default:
			d.apply(hdr)
			if err := tx.Save(&d).Error; err != nil {
				return err
			}
			res := tx.Model(&DiagramVersion{}).
				Where("diagram_id = ? AND version = ?", d.ID, d.Version).
				Updates(map[string]any{"data": data, "created_at": time.Now()})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected > 0 {
				return nil
			}
		}

		desc := descInitialSync
		if !isNew {
			desc = hdr.Description
		}
		v := DiagramVersion{DiagramID: d.ID, Version: d.Version, Data: data, Description: desc}
		return tx.Create(&v).Error
	})
	if err != nil {
		s.fail(c, "sync diagram", err)
		return
	}

	status := http.StatusOK
	if isNew {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{
		"message":    "Diagram synced successfully",
		"diagram_id": d.DiagramID,
		"version":    d.Version,
		"is_new":     isNew,
	})
}

// pruneVersions keeps the newest VersionLimit versions of a diagram.
func (s *Server) pruneVersions(tx *gorm.DB, diagramID uint) error {
	var ids []uint
	err := tx.Model(&DiagramVersion{}).
		Where("diagram_id = ?", diagramID).
		Order("version desc").
		Pluck("id", &ids).Error
	if err != nil || len(ids) <= s.cfg.VersionLimit {
		return err
	}
	return tx.Delete(&DiagramVersion{}, ids[s.cfg.VersionLimit:]).Error
}

func (s *Server) findDiagram(c *gin.Context, id string) (*Diagram, bool) {
	var d Diagram
	err := s.db.Where("user_id = ? AND diagram_id = ?", c.GetUint(ctxUserID), id).First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		abortError(c, http.StatusNotFound, "Diagram not found")
		return nil, false
	}
	if err != nil {
		s.internalError(c, "load diagram", err)
		return nil, false
	}
	return &d, true
}

func (s *Server) latestVersion(d *Diagram) (*DiagramVersion, error) {
	var v DiagramVersion
	if err := s.db.Where("diagram_id = ?", d.ID).Order("version desc").First(&v).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

// document decodes a stored version and annotates it for the pull
// endpoints.
func document(v *DiagramVersion, serverID uint) (map[string]json.RawMessage, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal([]byte(v.Data), &doc); err != nil {
		return nil, err
	}
	doc["version"] = json.RawMessage(strconv.Itoa(v.Version))
	if serverID != 0 {
		doc["server_id"] = json.RawMessage(strconv.FormatUint(uint64(serverID), 10))
	}
	return doc, nil
}

func (s *Server) pullDiagram(c *gin.Context) {
	d, ok := s.findDiagram(c, c.Param("id"))
	if !ok {
		return
	}

	var (
		v   *DiagramVersion
		err error
	)
	if raw := c.Query("version"); raw != "" {
		n, convErr := strconv.Atoi(raw)
		if convErr != nil || n < 1 {
			abortError(c, http.StatusBadRequest, "Invalid version")
			return
		}
		var found DiagramVersion
		err = s.db.Where("diagram_id = ? AND version = ?", d.ID, n).First(&found).Error
		v = &found
	} else {
		v, err = s.latestVersion(d)
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		abortError(c, http.StatusNotFound, "Version not found")
		return
	}
	if err != nil {
		s.internalError(c, "load version", err)
		return
	}

	doc, err := document(v, 0)
	if err != nil {
		s.internalError(c, "parse diagram data", err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (s *Server) pullAll(c *gin.Context) {
	var diagrams []Diagram
	if err := s.db.Where("user_id = ?", c.GetUint(ctxUserID)).Order("updated_at desc").Find(&diagrams).Error; err != nil {
		s.internalError(c, "fetch diagrams", err)
		return
	}

	docs := make([]map[string]json.RawMessage, 0, len(diagrams))
	for i := range diagrams {
		v, err := s.latestVersion(&diagrams[i])
		if err != nil {
			s.log.Warn("diagram without versions skipped", zap.String("diagram_id", diagrams[i].DiagramID), zap.Error(err))
			continue
		}
		doc, err := document(v, diagrams[i].ID)
		if err != nil {
			s.log.Warn("unparseable diagram data skipped", zap.String("diagram_id", diagrams[i].DiagramID), zap.Error(err))
			continue
		}
		docs = append(docs, doc)
	}
	c.JSON(http.StatusOK, gin.H{"diagrams": docs, "count": len(docs)})
}

func toDiagramInfo(d *Diagram) diagramInfo {
	return diagramInfo{
		ID:           d.ID,
		DiagramID:    d.DiagramID,
		Name:         d.Name,
		DatabaseType: d.DatabaseType,
		Version:      d.Version,
		TableCount:   d.TableCount,
		CreatedAt:    d.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:    d.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func (s *Server) listDiagrams(c *gin.Context) {
	var diagrams []Diagram
	if err := s.db.Where("user_id = ?", c.GetUint(ctxUserID)).Order("updated_at desc").Find(&diagrams).Error; err != nil {
		s.internalError(c, "fetch diagrams", err)
		return
	}
	out := make([]diagramInfo, 0, len(diagrams))
	for i := range diagrams {
		out = append(out, toDiagramInfo(&diagrams[i]))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) getDiagram(c *gin.Context) {
	d, ok := s.findDiagram(c, c.Param("id"))
	if !ok {
		return
	}
	c.JSON(http.StatusOK, toDiagramInfo(d))
}

// deleteDiagram drops every version and soft-deletes the diagram.
func (s *Server) deleteDiagram(c *gin.Context) {
	d, ok := s.findDiagram(c, c.Param("id"))
	if !ok {
		return
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("diagram_id = ?", d.ID).Delete(&DiagramVersion{}).Error; err != nil {
			return err
		}
		return tx.Delete(d).Error
	})
	if err != nil {
		s.internalError(c, "delete diagram", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Diagram deleted successfully"})
}

func (s *Server) listVersions(c *gin.Context) {
	d, ok := s.findDiagram(c, c.Param("id"))
	if !ok {
		return
	}
	var versions []DiagramVersion
	if err := s.db.Where("diagram_id = ?", d.ID).Order("version desc").Find(&versions).Error; err != nil {
		s.internalError(c, "fetch versions", err)
		return
	}
	out := make([]versionInfo, 0, len(versions))
	for _, v := range versions {
		out = append(out, versionInfo{
			ID:          v.ID,
			Version:     v.Version,
			Description: v.Description,
			CreatedAt:   v.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, out)
}

// createSnapshot copies the latest version into a new one.
func (s *Server) createSnapshot(c *gin.Context) {
	var req struct {
		Description string `json:"description"`
	}
	// an empty body means the default description
	_ = c.ShouldBindJSON(&req)

	d, ok := s.findDiagram(c, c.Param("id"))
	if !ok {
		return
	}
	latest, err := s.latestVersion(d)
	if err != nil {
		s.internalError(c, "get current version", err)
		return
	}

	desc := req.Description
	if desc == "" {
		desc = descSnapshot
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		d.Version++
		if err := tx.Save(d).Error; err != nil {
			return err
		}
		v := DiagramVersion{DiagramID: d.ID, Version: d.Version, Data: latest.Data, Description: desc}
		if err := tx.Create(&v).Error; err != nil {
			return err
		}
		return s.pruneVersions(tx, d.ID)
	})
	if err != nil {
		s.internalError(c, "create snapshot", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":    "Snapshot created successfully",
		"diagram_id": d.DiagramID,
		"version":    d.Version,
	})
}

// deleteVersion refuses the only remaining version and the latest one.
func (s *Server) deleteVersion(c *gin.Context) {
	n, err := strconv.Atoi(c.Param("version"))
	if err != nil {
		abortError(c, http.StatusBadRequest, "Invalid version number")
		return
	}
	d, ok := s.findDiagram(c, c.Param("id"))
	if !ok {
		return
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&DiagramVersion{}).Where("diagram_id = ?", d.ID).Count(&count).Error; err != nil {
			return err
		}
		if count <= 1 {
			return &httpError{http.StatusBadRequest, "Cannot delete the only remaining version"}
		}
		if n == d.Version {
			return &httpError{http.StatusBadRequest, "Cannot delete the latest version. Create a new snapshot first."}
		}
		res := tx.Where("diagram_id = ? AND version = ?", d.ID, n).Delete(&DiagramVersion{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return &httpError{http.StatusNotFound, "Version not found"}
		}
		return nil
	})
	if err != nil {
		s.fail(c, "delete version", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Version deleted successfully", "version": n})
}
