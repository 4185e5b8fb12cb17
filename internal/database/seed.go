package database

import (
	"database/sql"
	"fmt"
)

// chromosome describes one human chromosome: its canonical (unprefixed)
// name, its NCBI refseq accessions, and its length in each assembly.
type chromosome struct {
	name        string
	hg37Seq     string
	hg38Seq     string
	hg37Len     int64
	hg38Len     int64
}

var chromosomes = []chromosome{
	{"1", "NC_000001.10", "NC_000001.11", 249250621, 248956422},
	{"2", "NC_000002.11", "NC_000002.12", 243199373, 242193529},
	{"3", "NC_000003.11", "NC_000003.12", 198022430, 198295559},
	{"4", "NC_000004.11", "NC_000004.12", 191154276, 190214555},
	{"5", "NC_000005.9", "NC_000005.10", 180915260, 181538259},
	{"6", "NC_000006.11", "NC_000006.12", 171115067, 170805979},
	{"7", "NC_000007.13", "NC_000007.14", 159138663, 159345973},
	{"8", "NC_000008.10", "NC_000008.11", 146364022, 145138636},
	{"9", "NC_000009.11", "NC_000009.12", 141213431, 138394717},
	{"10", "NC_000010.10", "NC_000010.11", 135534747, 133797422},
	{"11", "NC_000011.9", "NC_000011.10", 135006516, 135086622},
	{"12", "NC_000012.11", "NC_000012.12", 133851895, 133275309},
	{"13", "NC_000013.10", "NC_000013.11", 115169878, 114364328},
	{"14", "NC_000014.8", "NC_000014.9", 107349540, 107043718},
	{"15", "NC_000015.9", "NC_000015.10", 102531392, 101991189},
	{"16", "NC_000016.9", "NC_000016.10", 90354753, 90338345},
	{"17", "NC_000017.10", "NC_000017.11", 81195210, 83257441},
	{"18", "NC_000018.9", "NC_000018.10", 78077248, 80373285},
	{"19", "NC_000019.9", "NC_000019.10", 59128983, 58617616},
	{"20", "NC_000020.10", "NC_000020.11", 63025520, 64444167},
	{"21", "NC_000021.8", "NC_000021.9", 48129895, 46709983},
	{"22", "NC_000022.10", "NC_000022.11", 51304566, 50818468},
	{"X", "NC_000023.10", "NC_000023.11", 155270560, 156040895},
	{"Y", "NC_000024.9", "NC_000024.10", 59373566, 57227415},
	{"M", "NC_012920.1", "NC_012920.1", 16569, 16569},
}

// seedContigs populates the contig, alias and chromosome refseq tables.
// Canonical contig names are the unprefixed spellings ("21", "X"); every
// spelling seen in the wild maps back through the alias table.
func seedContigs(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning seed transaction: %w", err)
	}
	defer tx.Rollback()

	contigStmt, err := tx.Prepare(`INSERT OR IGNORE INTO contigs (id) VALUES (?)`)
	if err != nil {
		return fmt.Errorf("preparing contig insert: %w", err)
	}
	defer contigStmt.Close()

	aliasStmt, err := tx.Prepare(`INSERT OR IGNORE INTO aliases (id, contig_id) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing alias insert: %w", err)
	}
	defer aliasStmt.Close()

	refseqStmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO ncbi_refseqs
			(reference_genome, gene_name, transcript_name, contig, start, endpos)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing refseq insert: %w", err)
	}
	defer refseqStmt.Close()

	for _, chr := range chromosomes {
		if _, err := contigStmt.Exec(chr.name); err != nil {
			return fmt.Errorf("inserting contig %s: %w", chr.name, err)
		}
		for _, alias := range []string{chr.name, "chr" + chr.name, chr.hg37Seq, chr.hg38Seq} {
			if _, err := aliasStmt.Exec(alias, chr.name); err != nil {
				return fmt.Errorf("inserting alias %s: %w", alias, err)
			}
		}
		// Chromosome-level refseq rows anchor HGVS short forms and the
		// Beacon sequence_id lookup.
		if _, err := refseqStmt.Exec("hg37", "chr"+chr.name, chr.hg37Seq, chr.name, 0, chr.hg37Len); err != nil {
			return fmt.Errorf("inserting hg37 refseq for %s: %w", chr.name, err)
		}
		if _, err := refseqStmt.Exec("hg38", "chr"+chr.name, chr.hg38Seq, chr.name, 0, chr.hg38Len); err != nil {
			return fmt.Errorf("inserting hg38 refseq for %s: %w", chr.name, err)
		}
	}

	return tx.Commit()
}
