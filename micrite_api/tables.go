package micrite_api

// A collection of reference contigs known to hold microbial genomes.
// Lookups return the first matching entry, names are not required to be unique.
type MicrobialContigs struct {
	contigs []ContigEntry
}

// A collection of microbes considered oncogenic.
// Lookups return the first matching entry, taxids are not required to be unique.
type OncogenicMicrobes struct {
	microbes []OncogenicMicrobe
}

// Create the contig table from the built-in entries followed by extra
func NewMicrobialContigs(extra ...ContigEntry) *MicrobialContigs {
	return &MicrobialContigs{contigs: append(CommonMicrobialContigs(), extra...)}
}

// Create the oncogenic allow-list from the built-in entries followed by extra
func NewOncogenicMicrobes(extra ...OncogenicMicrobe) *OncogenicMicrobes {
	return &OncogenicMicrobes{microbes: append(CancerMicrobes(), extra...)}
}

// Check if the table contains a contig with this name
func (m *MicrobialContigs) Contains(contig string) bool {
	_, ok := m.find(contig)
	return ok
}

// Return the species label of the first entry with this contig name
func (m *MicrobialContigs) ContigToSpecies(contig string) (string, bool) {
	entry, ok := m.find(contig)
	return entry.Species, ok
}

// Return the taxid of the first entry with this contig name
func (m *MicrobialContigs) ContigToTaxid(contig string) (string, bool) {
	entry, ok := m.find(contig)
	return entry.Taxid, ok
}

// Return the contig names in table order
func (m *MicrobialContigs) Names() []string {
	names := make([]string, 0, len(m.contigs))
	for _, c := range m.contigs {
		names = append(names, c.Contig)
	}
	return names
}

// Return the names that are in the table, keeping the order of names
func (m *MicrobialContigs) Intersect(names []string) []string {
	observed := []string{}
	for _, name := range names {
		if m.Contains(name) {
			observed = append(observed, name)
		}
	}
	return observed
}

func (m *MicrobialContigs) find(contig string) (ContigEntry, bool) {
	for _, c := range m.contigs {
		if c.Contig == contig {
			return c, true
		}
	}
	return ContigEntry{}, false
}

// Check if the allow-list contains this taxid
func (o *OncogenicMicrobes) Contains(taxid string) bool {
	_, ok := o.TaxidToName(taxid)
	return ok
}

// Return the name of the first microbe with this taxid
func (o *OncogenicMicrobes) TaxidToName(taxid string) (string, bool) {
	for _, m := range o.microbes {
		if m.Taxid == taxid {
			return m.Name, true
		}
	}
	return "", false
}

// Return the number of microbes on the allow-list
func (o *OncogenicMicrobes) Len() int {
	return len(o.microbes)
}

// The built-in microbial contigs of common reference genomes
func CommonMicrobialContigs() []ContigEntry {
	return append([]ContigEntry{}, commonMicrobialContigs...)
}

// The built-in oncogenic microbes
func CancerMicrobes() []OncogenicMicrobe {
	return append([]OncogenicMicrobe{}, cancerMicrobes...)
}

var commonMicrobialContigs = []ContigEntry{
	// EBV
	{Contig: "chrEBV", Taxid: "10376", Species: "EBV"},
	{Contig: "NC_009334", Taxid: "10376", Species: "EBV"},
	{Contig: "NC_007605", Taxid: "10376", Species: "EBV"},
	// HHV6B
	{Contig: "NC_000898", Taxid: "10376", Species: "HHV6B"},
}

var cancerMicrobes = []OncogenicMicrobe{
	{Name: "Human gammaherpesvirus 8", Taxid: "37296"},
	{Name: "Human gammaherpesvirus 4 (EBV)", Taxid: "10376"},
	{Name: "Human betaherpesvirus 6A", Taxid: "32603"},
	{Name: "Human betaherpesvirus 6B", Taxid: "32604"},
	{Name: "Human betaherpesvirus 7", Taxid: "10372"},
	{Name: "Primate T-lymphotropic virus 1", Taxid: "194440"},
	{Name: "Primate T-lymphotropic virus 2", Taxid: "194441"},
	{Name: "Human papillomavirus", Taxid: "10566"},
	{Name: "Hepatitis B virus", Taxid: "10407"},
	{Name: "Hepacivirus C", Taxid: "11103"},
	{Name: "Merkel cell polyomavirus", Taxid: "493803"},
	{Name: "Betapolyomavirus macacae", Taxid: "1891767"},
	{Name: "Betapolyomavirus secuhominis", Taxid: "1891763"},
	{Name: "Betapolyomavirus hominis", Taxid: "1891762"},
	{Name: "Cytolomegalovirus", Taxid: "10358"},
	{Name: "Alphatorquevirus", Taxid: "687331"},
}
