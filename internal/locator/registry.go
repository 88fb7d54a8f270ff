package locator

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"xeroreports/internal/browser"
	"xeroreports/lib/configutil"
)

// Element names used by the auth machine and the report routines.
const (
	ORG_SWITCHER             = "org_switcher"
	ORG_LIST_ITEM            = "org_list_item"
	TENANT_OPTION            = "tenant_option"
	SHELL_MARKER             = "shell_marker"
	SEARCH_INPUT             = "search_input"
	REPORTING_NAV            = "reporting_nav"
	REPORT_SEARCH            = "report_search"
	DATE_RANGE_DROPDOWN      = "date_range_dropdown"
	LAST_MONTH_OPTION        = "last_month_option"
	UPDATE_BUTTON            = "update_button"
	DATE_FROM_INPUT          = "date_from_input"
	DATE_TO_INPUT            = "date_to_input"
	EXPORT_BUTTON            = "export_button"
	EXCEL_OPTION             = "excel_option"
	EXPORT_CONFIRM           = "export_confirm"
	ACTIVITY_STATEMENT_LINK  = "activity_statement_link"
	CREATE_NEW_STATEMENT     = "create_new_statement"
	PERIOD_BUTTON            = "period_button"
	DRAFT_STATEMENT          = "draft_statement"
	PAYROLL_ACTIVITY_SUMMARY = "payroll_activity_summary"
)

// Template variables.
const (
	VAR_NAME   = "name"
	VAR_PERIOD = "period"
)

// Registry maps an element name to its strategies, tried in order.
type Registry map[string][]browser.Selector

func hasText(tag, text string) browser.Selector {
	return browser.XPath(fmt.Sprintf(`//%s[contains(normalize-space(.), "%s")]`, tag, text))
}

func exactText(text string) browser.Selector {
	return browser.XPath(fmt.Sprintf(`//*[normalize-space(text())="%s"]`, text))
}

// DefaultRegistry returns the built-in strategies. Templated strategies reference variables as
// {{name}}, see Var.
func DefaultRegistry() Registry {
	return Registry{
		ORG_SWITCHER: {
			browser.CSS(`[data-testid="org-switcher"]`),
			browser.CSS(`[data-automationid="org-switcher"]`),
			browser.CSS(`button[aria-label*="organisation"]`),
			browser.CSS(`button[aria-label*="organization"]`),
			browser.CSS(`[class*="org-switcher"]`),
			browser.CSS(`[class*="organisation-switcher"]`),
			browser.XPath(`//header//button[contains(normalize-space(.), "Switch")]`),
		},
		ORG_LIST_ITEM: {
			browser.CSS(`[data-testid="org-item"]`),
			browser.CSS(`[class*="org-list"] li`),
			browser.CSS(`[role="menuitem"]`),
			browser.CSS(`[class*="organisation-list"] button`),
		},
		TENANT_OPTION: {
			browser.XPath(`//*[@role="menuitem" or @data-testid="org-item"][normalize-space(.)={{name}}]`),
			browser.XPath(`//*[normalize-space(text())={{name}}]`),
			browser.XPath(`//*[@role="menuitem" or @data-testid="org-item" or self::li or self::button][contains(normalize-space(.), {{name}})]`),
		},
		SHELL_MARKER: {
			browser.CSS(`[data-testid="org-switcher"]`),
			browser.CSS(`[class*="org-switcher"]`),
			browser.CSS(`[data-automationid="navigation"]`),
			browser.CSS(`nav[role="navigation"]`),
			browser.CSS(`[data-testid="shell-header"]`),
		},
		SEARCH_INPUT: {
			browser.CSS(`input[placeholder*="Search"]`),
			browser.CSS(`input[type="search"]`),
			browser.CSS(`[data-testid="search-input"]`),
			browser.CSS(`input[aria-label*="Search"]`),
		},
		REPORTING_NAV: {
			hasText("button", "Reporting"),
			browser.XPath(`//*[@role="button"][contains(normalize-space(.), "Reporting")]`),
			hasText("a", "Reporting"),
			browser.XPath(`//*[self::nav or self::header or @role="navigation"]//*[normalize-space(text())="Reporting"]`),
			hasText("a", "Reports"),
			browser.CSS(`[data-testid="nav-reports"]`),
		},
		REPORT_SEARCH: {
			browser.CSS(`input[placeholder*="Find a report"]`),
			browser.CSS(`input[placeholder*="Search reports"]`),
			browser.CSS(`[data-testid="report-search"]`),
		},
		DATE_RANGE_DROPDOWN: {
			hasText("button", "Date range"),
			exactText("Date range"),
			browser.CSS(`[data-testid="date-range"]`),
			browser.CSS(`select[name*="date"]`),
		},
		LAST_MONTH_OPTION: {
			exactText("Last month"),
			browser.CSS(`[data-value="last-month"]`),
			hasText("option", "Last month"),
		},
		DATE_FROM_INPUT: {
			browser.CSS(`input[data-automationid*="date-from"]`),
			browser.CSS(`input[aria-label*="Start date"]`),
			browser.CSS(`input[name*="fromDate"]`),
			browser.XPath(`//label[contains(normalize-space(.), "From")]/following::input[1]`),
		},
		DATE_TO_INPUT: {
			browser.CSS(`input[data-automationid*="date-to"]`),
			browser.CSS(`input[aria-label*="End date"]`),
			browser.CSS(`input[name*="toDate"]`),
			browser.XPath(`//label[normalize-space(.)="To"]/following::input[1]`),
		},
		UPDATE_BUTTON: {
			hasText("button", "Update"),
			browser.CSS(`[data-testid="update-button"]`),
		},
		EXPORT_BUTTON: {
			hasText("button", "Export"),
			browser.CSS(`[data-testid="export-button"]`),
			browser.CSS(`button[aria-label*="Export"]`),
		},
		EXCEL_OPTION: {
			browser.XPath(`//*[@role="radio"][contains(normalize-space(.), "Excel") or contains(@name, "Excel")]`),
			browser.XPath(`//label[contains(normalize-space(.), "Excel")]`),
			hasText("button", "Excel"),
			browser.CSS(`[data-testid="export-excel"]`),
			browser.XPath(`//*[@role="dialog" or contains(@class, "modal") or contains(@class, "export")]//*[normalize-space(text())="Excel"]`),
		},
		EXPORT_CONFIRM: {
			browser.XPath(`(//button[normalize-space(.)="Export"])[last()]`),
			browser.XPath(`(//*[@role="dialog"]//button[contains(normalize-space(.), "Export")])[last()]`),
		},
		ACTIVITY_STATEMENT_LINK: {
			browser.XPath(`//a[normalize-space(.)="Activity Statement"]`),
			browser.XPath(`//*[@role="menuitem"][normalize-space(.)="Activity Statement"]`),
			browser.XPath(`//a[contains(normalize-space(.), "Activity Statement") and not(contains(., "Summary"))]`),
			browser.CSS(`[data-testid="activity-statement"]`),
		},
		CREATE_NEW_STATEMENT: {
			hasText("button", "Create new statement"),
			hasText("button", "Create statement"),
			exactText("Create new statement"),
			browser.CSS(`[data-testid="create-statement"]`),
		},
		PERIOD_BUTTON: {
			browser.XPath(`//button[contains(normalize-space(.), {{period}})]`),
			browser.XPath(`//*[@role="button" or self::a][contains(normalize-space(.), {{period}})]`),
			browser.XPath(`//*[self::li or @role="option"][contains(normalize-space(.), {{period}})]`),
		},
		DRAFT_STATEMENT: {
			exactText("Draft"),
			exactText("Unfiled"),
			browser.CSS(`[class*="draft"]`),
			browser.CSS(`[class*="unfiled"]`),
		},
		PAYROLL_ACTIVITY_SUMMARY: {
			exactText("Payroll Activity Summary"),
			hasText("a", "Payroll Activity Summary"),
			browser.CSS(`[data-testid="payroll-activity-summary"]`),
		},
	}
}

// Strategies returns the strategies for element with vars substituted.
func (r Registry) Strategies(element string, vars ...Var) ([]browser.Selector, error) {
	raw, ok := r[element]
	if !ok || len(raw) == 0 {
		return nil, fmt.Errorf("unknown element %q", element)
	}
	out := make([]browser.Selector, len(raw))
	for i, sel := range raw {
		out[i] = expand(sel, vars)
	}
	return out, nil
}

// LoadRegistry reads selector overrides from a json5 file shaped as
// { "element": ["css selector", "xpath://..."] } and applies them on top of the defaults.
// Each listed element replaces its default strategies wholesale. A missing file yields the
// defaults.
func LoadRegistry(path string) (Registry, error) {
	registry := DefaultRegistry()
	if path == "" {
		return registry, nil
	}

	overrides, err := configutil.ReadConfig[map[string][]string](path)
	if errors.Is(err, os.ErrNotExist) {
		return registry, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read selectors %s: %w", path, err)
	}

	for element, exprs := range overrides {
		var strategies []browser.Selector
		for _, expr := range exprs {
			if strings.TrimSpace(expr) == "" {
				continue
			}
			strategies = append(strategies, browser.ParseSelector(expr))
		}
		if len(strategies) == 0 {
			return nil, fmt.Errorf("selectors %s: element %q has no strategies", path, element)
		}
		registry[element] = strategies
	}
	return registry, nil
}
