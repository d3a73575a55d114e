package service

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"domainatlas/internal/utils"

	"github.com/oschwald/geoip2-golang"
)

// ASNInfo attributes an IP address to its autonomous system. Empty fields
// mean the attribution failed; callers treat that as absent data, not an
// error.
type ASNInfo struct {
	ASN     string `json:"asn"`
	Org     string `json:"org"`
	Country string `json:"country"`
}

const geoPublicMirror = "https://github.com/P3TERX/GeoLite.mmdb/raw/download"

type ASNService struct {
	mu         sync.RWMutex
	asnReader  *geoip2.Reader
	cityReader *geoip2.Reader

	dataDir    string
	accountID  string
	licenseKey string
	mirrorURL  string

	downloadClient *http.Client
	lookupClient   *http.Client
	fallbackURL    string
}

func NewASNService(dataDir, accountID, licenseKey, mirrorURL string) *ASNService {
	return &ASNService{
		dataDir:        dataDir,
		accountID:      accountID,
		licenseKey:     licenseKey,
		mirrorURL:      mirrorURL,
		downloadClient: &http.Client{Timeout: 5 * time.Minute},
		lookupClient:   &http.Client{Timeout: 10 * time.Second},
		fallbackURL:    "http://ip-api.com/json/",
	}
}

func (s *ASNService) editions() map[string]string {
	return map[string]string{
		"GeoLite2-ASN":  filepath.Join(s.dataDir, "GeoLite2-ASN.mmdb"),
		"GeoLite2-City": filepath.Join(s.dataDir, "GeoLite2-City.mmdb"),
	}
}

// Initialize downloads missing databases and loads whatever is on disk.
// Download failures are logged, not fatal: lookups fall back to the HTTP
// service until a database arrives.
func (s *ASNService) Initialize() {
	_ = os.MkdirAll(s.dataDir, 0755)
	for edition, path := range s.editions() {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			utils.Log.Info("GeoIP database missing, downloading", utils.Field("edition", edition))
			if err := s.download(edition, path); err != nil {
				utils.Log.Error("failed to download GeoIP database",
					utils.Field("edition", edition), utils.Field("error", err.Error()))
			}
		}
	}
	s.Reload()
}

// StartUpdater refreshes databases older than 72h, checking every 6h, until
// the context is cancelled.
func (s *ASNService) StartUpdater(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(6 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.refreshStale()
			}
		}
	}()
}

func (s *ASNService) refreshStale() {
	updated := false
	for edition, path := range s.editions() {
		stat, err := os.Stat(path)
		if err == nil && time.Since(stat.ModTime()) <= 72*time.Hour {
			continue
		}
		utils.Log.Info("GeoIP database stale, updating", utils.Field("edition", edition))
		if err := s.download(edition, path); err != nil {
			utils.Log.Error("failed to update GeoIP database",
				utils.Field("edition", edition), utils.Field("error", err.Error()))
			continue
		}
		updated = true
	}
	if updated {
		s.Reload()
	}
}

func (s *ASNService) downloadURL(edition string) string {
	if s.mirrorURL != "" {
		return strings.TrimSuffix(s.mirrorURL, "/") + "/" + edition + ".mmdb"
	}
	if s.licenseKey != "" {
		return fmt.Sprintf("https://download.maxmind.com/app/geoip_download?edition_id=%s&license_key=%s&suffix=tar.gz",
			edition, s.licenseKey)
	}
	return geoPublicMirror + "/" + edition + ".mmdb"
}

func (s *ASNService) download(edition, path string) error {
	url := s.downloadURL(edition)
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if !strings.Contains(url, "license_key=") && s.accountID != "" && s.licenseKey != "" {
		req.SetBasicAuth(s.accountID, s.licenseKey)
	}

	resp, err := s.downloadClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bad status: %s", resp.Status)
	}

	if strings.HasSuffix(url, ".tar.gz") {
		return extractMMDB(resp.Body, edition+".mmdb", path)
	}

	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		_ = out.Close()
	}()
	_, err = io.Copy(out, resp.Body)
	return err
}

// extractMMDB pulls the named .mmdb file out of a MaxMind tar.gz archive.
func extractMMDB(r io.Reader, want, dest string) error {
	gzr, err := gzip.NewReader(r)
	if err != nil {
		return err
	}
	defer func() {
		_ = gzr.Close()
	}()

	tr := tar.NewReader(gzr)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if header.Typeflag == tar.TypeDir {
			continue
		}
		if strings.HasSuffix(header.Name, want) {
			out, err := os.Create(dest)
			if err != nil {
				return err
			}
			_, err = io.Copy(out, tr)
			_ = out.Close()
			return err
		}
	}
	return fmt.Errorf("%s not found in archive", want)
}

// Reload swaps in freshly downloaded databases. Missing files leave the
// previous reader (or nil) in place.
func (s *ASNService) Reload() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if reader, err := geoip2.Open(filepath.Join(s.dataDir, "GeoLite2-ASN.mmdb")); err == nil {
		if s.asnReader != nil {
			_ = s.asnReader.Close()
		}
		s.asnReader = reader
		utils.Log.Info("ASN database loaded")
	}
	if reader, err := geoip2.Open(filepath.Join(s.dataDir, "GeoLite2-City.mmdb")); err == nil {
		if s.cityReader != nil {
			_ = s.cityReader.Close()
		}
		s.cityReader = reader
		utils.Log.Info("City database loaded")
	}
}

// Lookup resolves an IP to {ASN number, organization, ISO country}, using
// the local databases first and the public lookup API when they cannot
// answer.
func (s *ASNService) Lookup(ctx context.Context, ip string) ASNInfo {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return ASNInfo{}
	}

	s.mu.RLock()
	asnReader, cityReader := s.asnReader, s.cityReader
	s.mu.RUnlock()

	var info ASNInfo
	if asnReader != nil {
		if rec, err := asnReader.ASN(parsed); err == nil && rec.AutonomousSystemNumber != 0 {
			info.ASN = strconv.FormatUint(uint64(rec.AutonomousSystemNumber), 10)
			info.Org = rec.AutonomousSystemOrganization
		}
	}
	if cityReader != nil {
		if rec, err := cityReader.City(parsed); err == nil {
			info.Country = rec.Country.IsoCode
		}
	}
	if info != (ASNInfo{}) {
		return info
	}
	return s.lookupHTTP(ctx, ip)
}

func (s *ASNService) lookupHTTP(ctx context.Context, ip string) ASNInfo {
	url := s.fallbackURL + ip + "?fields=status,message,countryCode,as,org,query"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ASNInfo{}
	}
	resp, err := s.lookupClient.Do(req)
	if err != nil {
		utils.Log.Warn("ASN fallback lookup failed", utils.Field("ip", ip), utils.Field("error", err.Error()))
		return ASNInfo{}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	var body struct {
		Status      string `json:"status"`
		Message     string `json:"message"`
		CountryCode string `json:"countryCode"`
		AS          string `json:"as"`
		Org         string `json:"org"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return ASNInfo{}
	}
	if body.Status != "success" {
		utils.Log.Warn("ASN fallback lookup rejected", utils.Field("ip", ip), utils.Field("message", body.Message))
		return ASNInfo{}
	}

	info := ASNInfo{Org: body.Org, Country: body.CountryCode}
	if body.AS != "" {
		number, rest, _ := strings.Cut(body.AS, " ")
		info.ASN = strings.TrimPrefix(number, "AS")
		if info.Org == "" {
			info.Org = rest
		}
	}
	return info
}
