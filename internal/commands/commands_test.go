package commands_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/ledger/internal/commands"
	"github.com/cleared-dev/ledger/internal/model"
)

// gl runs a command against the books in dir and requires success.
func gl(t *testing.T, dir string, args ...string) string {
	t.Helper()
	out, err := runGL(t, append([]string{"--repo", dir, "--actor", "alice"}, args...)...)
	require.NoError(t, err, out)
	return out
}

func glErr(t *testing.T, dir string, args ...string) error {
	t.Helper()
	_, err := runGL(t, append([]string{"--repo", dir, "--actor", "alice"}, args...)...)
	require.Error(t, err)
	return err
}

func cashSale(t *testing.T, dir string) {
	t.Helper()
	out := gl(t, dir, "journal", "new", "--date", "2025-01-10", "--description", "Cash sale")
	assert.Contains(t, out, "Created draft J-0001 dated 2025-01-10")
	assert.Contains(t, gl(t, dir, "journal", "add", "J-0001", "1010", "--debit", "100"), "Added line 1 to J-0001")
	assert.Contains(t, gl(t, dir, "journal", "add", "J-0001", "4010", "--credit", "100.00"), "Added line 2 to J-0001")
	assert.Contains(t, gl(t, dir, "journal", "post", "J-0001"), "Posted J-0001")
}

func TestJournal_CashSale(t *testing.T) {
	dir := initBooks(t)
	cashSale(t, dir)

	assert.Contains(t, gl(t, dir, "report", "balance", "1010"), "1010 Business Checking: 100.00 USD")
	assert.Contains(t, gl(t, dir, "report", "balance", "4010"), "4010 Service Revenue: 100.00 USD")
	assert.Contains(t, gl(t, dir, "report", "subtree", "1000"), "1000 Assets: 100.00 USD")

	show := gl(t, dir, "journal", "show", "J-0001")
	assert.Contains(t, show, "J-0001  2025-01-10  posted")
	assert.Contains(t, show, "posted by alice")
	assert.Contains(t, show, "Cash sale")

	list := gl(t, dir, "journal", "list", "--status", "posted")
	assert.Contains(t, list, "J-0001")
	assert.Contains(t, list, "100.00")

	trial := gl(t, dir, "report", "trial")
	assert.Contains(t, trial, "Trial balance (current)")
	assert.Contains(t, trial, "Business Checking")
	assert.Contains(t, trial, "Total")
}

func TestJournal_Void(t *testing.T) {
	dir := initBooks(t)
	cashSale(t, dir)

	assert.Contains(t, gl(t, dir, "journal", "void", "J-0001"), "Voided J-0001")
	assert.Contains(t, gl(t, dir, "report", "balance", "1010"), ": 0.00 USD")
	// Voided today, so a January balance still includes it.
	assert.Contains(t, gl(t, dir, "report", "balance", "1010", "--as-of", "2025-01-31"), ": 100.00 USD")
	assert.Contains(t, gl(t, dir, "report", "balance", "1010", "--as-of", "2025-01-09"), ": 0.00 USD")

	err := glErr(t, dir, "journal", "void", "J-0001")
	assert.ErrorIs(t, err, model.ErrNotPosted)
}

func TestJournal_Unbalanced(t *testing.T) {
	dir := initBooks(t)
	gl(t, dir, "journal", "new", "--ref", "UB-1", "--date", "2025-02-01")
	gl(t, dir, "journal", "add", "UB-1", "5010", "--debit", "100")
	gl(t, dir, "journal", "add", "UB-1", "1010", "--credit", "90")

	err := glErr(t, dir, "journal", "post", "UB-1")
	assert.ErrorIs(t, err, model.ErrUnbalancedEntry)
	assert.True(t, strings.HasPrefix(commands.FormatError(err), "error: UnbalancedEntry: "), commands.FormatError(err))

	assert.Contains(t, gl(t, dir, "journal", "show", "UB-1"), "draft")
}

func TestJournal_InvalidAmount(t *testing.T) {
	dir := initBooks(t)
	gl(t, dir, "journal", "new", "--ref", "IA-1")

	err := glErr(t, dir, "journal", "add", "IA-1", "1010", "--debit", "50", "--credit", "50")
	assert.ErrorIs(t, err, model.ErrInvalidAmount)

	err = glErr(t, dir, "journal", "add", "IA-1", "1010", "--debit", "1.005")
	assert.ErrorIs(t, err, model.ErrInvalidAmount)

	err = glErr(t, dir, "journal", "add", "IA-1", "1010", "--debit", "abc")
	assert.ErrorIs(t, err, model.ErrInvalidAmount)

	err = glErr(t, dir, "journal", "add", "IA-1", "9999", "--debit", "5")
	assert.ErrorIs(t, err, model.ErrUnknownAccount)
}

func TestJournal_EditDraft(t *testing.T) {
	dir := initBooks(t)
	gl(t, dir, "journal", "new", "--ref", "ED-1")
	out := gl(t, dir, "journal", "add", "ED-1", "1010", "--debit", "5")

	itemID := strings.TrimSuffix(out[strings.Index(out, "(item ")+len("(item "):], ")\n")
	assert.Contains(t, gl(t, dir, "journal", "rm", itemID), "Removed item "+itemID)

	err := glErr(t, dir, "journal", "post", "ED-1")
	assert.ErrorIs(t, err, model.ErrEmptyJournal)

	assert.Contains(t, gl(t, dir, "journal", "delete", "ED-1"), "Deleted ED-1")
	err = glErr(t, dir, "journal", "show", "ED-1")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestJournal_ListBadStatus(t *testing.T) {
	dir := initBooks(t)
	err := glErr(t, dir, "journal", "list", "--status", "open")
	assert.ErrorContains(t, err, "--status must be")
}

func TestAccount_Lifecycle(t *testing.T) {
	dir := initBooks(t)

	assert.Contains(t, gl(t, dir, "account", "add", "1030", "Petty Cash", "--type", "asset", "--parent", "1000"), "Created account 1030 Petty Cash (asset)")
	assert.ErrorIs(t, glErr(t, dir, "account", "add", "1030", "Dup", "--type", "asset"), model.ErrDuplicateCode)
	assert.ErrorIs(t, glErr(t, dir, "account", "add", "1040", "Bad", "--type", "cash"), model.ErrInvalidType)
	assert.ErrorIs(t, glErr(t, dir, "account", "add", "1040", "Orphan", "--type", "asset", "--parent", "9999"), model.ErrInvalidParent)

	assert.ErrorIs(t, glErr(t, dir, "account", "move", "1000", "--parent", "1030"), model.ErrCycleDetected)
	assert.ErrorIs(t, glErr(t, dir, "account", "move", "1030", "--parent", "9999"), model.ErrNotFound)
	assert.Contains(t, gl(t, dir, "account", "move", "1030"), "Moved 1030 to the top level")
	assert.Contains(t, gl(t, dir, "account", "move", "1030", "--parent", "1000"), "Moved 1030 under 1000")

	assert.Contains(t, gl(t, dir, "account", "rename", "1030", "Cash Box"), "Renamed 1030 to Cash Box")
	assert.Contains(t, gl(t, dir, "account", "reclassify", "1030", "expense"), "Reclassified 1030 as expense")
	assert.Contains(t, gl(t, dir, "account", "retire", "1030"), "Retired 1030 Cash Box")

	list := gl(t, dir, "account", "list")
	assert.NotContains(t, list, "Cash Box")
	list = gl(t, dir, "account", "list", "--all")
	assert.Contains(t, list, "Cash Box")
	assert.Contains(t, list, "retired")
}

func TestAccount_InUse(t *testing.T) {
	dir := initBooks(t)
	cashSale(t, dir)

	list := gl(t, dir, "account", "list")
	assert.Contains(t, list, "ITEMS")
	assert.Regexp(t, `1010\s+Business Checking\s+asset\s+active\s+1\n`, list)

	assert.ErrorIs(t, glErr(t, dir, "account", "retire", "1010"), model.ErrAccountInUse)
	assert.ErrorIs(t, glErr(t, dir, "account", "reclassify", "1010", "expense"), model.ErrAccountInUse)
}

func TestImport_File(t *testing.T) {
	dir := initBooks(t)

	out := gl(t, dir, "import", "../../testdata/journal_rows.csv", "--post")
	assert.Contains(t, out, "OPEN-1 posted")
	assert.Contains(t, out, "journal_rows.csv: 6 rows, 3 journals, 0 failures")

	assert.Contains(t, gl(t, dir, "report", "balance", "1010"), ": 4550.00 USD")
	trial := gl(t, dir, "report", "trial", "--as-of", "2025-01-31")
	assert.Contains(t, trial, "Trial balance as of 2025-01-31")
	assert.Contains(t, trial, "5750.00")
}

func TestImport_Failures(t *testing.T) {
	dir := initBooks(t)
	path := filepath.Join(t.TempDir(), "bad.csv")
	data := "reference,date,description,account,debit,credit\n" +
		"B-1,2025-01-02,Bad,1010,10.00,\n" +
		"B-1,2025-01-02,Bad,9999,,10.00\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	out, err := runGL(t, "--repo", dir, "import", path, "--post")
	require.Error(t, err)
	assert.Contains(t, out, "bad.csv:3: B-1: UnknownAccount")
	assert.Contains(t, out, "B-1 drafted")
	assert.Contains(t, gl(t, dir, "journal", "show", "B-1"), "draft")
}

func TestImport_UnknownFormat(t *testing.T) {
	dir := initBooks(t)
	err := glErr(t, dir, "import", "../../testdata/journal_rows.csv", "--format", "ofx")
	assert.ErrorContains(t, err, `unknown import format "ofx"`)
}

func TestImport_ScanDirectory(t *testing.T) {
	dir := initBooks(t)
	data, err := os.ReadFile("../../testdata/chase_checking.csv")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "import", "chase_jan.csv"), data, 0o644))

	out := gl(t, dir, "import", "--post")
	assert.Contains(t, out, "chase_20250103_GITHUBPROS posted")

	_, err = os.Stat(filepath.Join(dir, "import", "processed", "chase_jan.csv"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "import", "chase_jan.csv"))
	assert.True(t, os.IsNotExist(err))

	assert.Contains(t, gl(t, dir, "report", "balance", "1010"), ": 1471.42 USD")
	assert.Contains(t, gl(t, dir, "report", "balance", "1900"), ": -1471.42 USD")
	assert.Contains(t, gl(t, dir, "import"), "Nothing to import")
}

func TestExport(t *testing.T) {
	dir := initBooks(t)
	cashSale(t, dir)

	path := filepath.Join(t.TempDir(), "trial.csv")
	out := gl(t, dir, "export", "trial", "-o", path)
	assert.Contains(t, out, "Wrote "+path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "code,name,type,debit,credit,balance\n"+
		"1010,Business Checking,asset,100.00,0.00,100.00\n"+
		"4010,Service Revenue,revenue,0.00,100.00,100.00\n"+
		",Total,,100.00,100.00,\n", string(data))

	items := gl(t, dir, "export", "journals")
	assert.True(t, strings.HasPrefix(items, "reference,date,status,description,line,account,debit,credit\n"), items)
	assert.Contains(t, items, "J-0001,2025-01-10,posted,Cash sale,1,1010,100.00,")

	chart := gl(t, dir, "export", "chart")
	assert.True(t, strings.HasPrefix(chart, "code,name,type,parent_code,description,retired\n"), chart)
	assert.Contains(t, chart, "1010,Business Checking,asset,1000")
}

func TestFormatError(t *testing.T) {
	err := &model.Error{Kind: model.ErrCycleDetected, AccountCode: "1000"}
	assert.Equal(t, "error: CycleDetected: "+err.Error(), commands.FormatError(err))
	assert.Equal(t, "error: boom", commands.FormatError(errors.New("boom")))
}
