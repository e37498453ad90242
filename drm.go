package epub

import (
	"encoding/xml"
	"errors"
	"fmt"
	"strings"
)

// encryptionPath is the standard location of the encryption descriptor.
const encryptionPath = "META-INF/encryption.xml"

// sinfPath is the entry whose presence indicates Apple FairPlay DRM.
const sinfPath = "META-INF/sinf.xml"

// Font obfuscation algorithm URIs. These do NOT constitute DRM.
var fontObfuscationAlgorithms = map[string]bool{
	"http://www.idpf.org/2008/embedding": true, // IDPF font obfuscation
	"http://ns.adobe.com/pdf/enc#RC":     true, // Adobe font obfuscation
}

// drmSchemes maps namespace signatures found in algorithm URIs or KeyInfo
// content to a human-readable scheme name.
var drmSchemes = []struct {
	signature string
	name      string
}{
	{"http://ns.adobe.com/adept", "Adobe ADEPT"},
	{"http://readium.org/2014/01/lcp", "Readium LCP"},
}

// XML structures for parsing encryption.xml.

type xmlEncryption struct {
	XMLName       xml.Name           `xml:"encryption"`
	EncryptedData []xmlEncryptedData `xml:"EncryptedData"`
}

type xmlEncryptedData struct {
	EncryptionMethod xmlEncryptionMethod `xml:"EncryptionMethod"`
	KeyInfo          xmlKeyInfo          `xml:"KeyInfo"`
}

type xmlEncryptionMethod struct {
	Algorithm string `xml:"Algorithm,attr"`
}

type xmlKeyInfo struct {
	InnerXML string `xml:",innerxml"`
}

// checkDRM inspects the archive's encryption descriptors and determines
// whether the book is DRM-protected or merely uses font obfuscation.
//
// A META-INF/sinf.xml entry marks Apple FairPlay. Entries in
// META-INF/encryption.xml whose algorithm is a known font obfuscation URI
// are recorded as a warning; any other encrypted entry is treated as DRM.
func (p *parseContext) checkDRM(a Archive) error {
	if _, err := a.ReadResource(sinfPath); err == nil {
		return fmt.Errorf("Apple FairPlay: %w", ErrDRMProtected)
	}

	data, err := a.ReadResource(encryptionPath)
	if err != nil {
		if errors.Is(err, ErrResourceNotFound) {
			return nil
		}
		return err
	}
	data = stripBOM(data)

	var enc xmlEncryption
	if err := xml.Unmarshal(data, &enc); err != nil {
		// An encryption descriptor we cannot parse is treated as DRM.
		return fmt.Errorf("%s: %w", encryptionPath, ErrDRMProtected)
	}

	obfuscatedFonts := false
	for _, ed := range enc.EncryptedData {
		algo := ed.EncryptionMethod.Algorithm
		if fontObfuscationAlgorithms[algo] {
			obfuscatedFonts = true
			continue
		}
		if name := drmSchemeName(algo); name != "" {
			return fmt.Errorf("%s: %w", name, ErrDRMProtected)
		}
		if name := drmSchemeName(ed.KeyInfo.InnerXML); name != "" {
			return fmt.Errorf("%s: %w", name, ErrDRMProtected)
		}
		// Any encrypted entry that is not font obfuscation counts as DRM.
		return fmt.Errorf("%s: %w", encryptionPath, ErrDRMProtected)
	}

	if obfuscatedFonts {
		p.warnf("embedded fonts are obfuscated")
	}
	return nil
}

// drmSchemeName returns the name of the DRM scheme whose namespace signature
// appears in s, or "" when none matches.
func drmSchemeName(s string) string {
	for _, scheme := range drmSchemes {
		if strings.Contains(s, scheme.signature) {
			return scheme.name
		}
	}
	return ""
}
