package acquire

import (
	"encoding/json"
	"fmt"
	"strings"
)

// elements that can reveal the price list.
var pricingSelectors = []string{"a", "button", `[role="button"]`, ".menu-item", ".nav-item"}

// elements that can switch between court types.
var toggleSelectors = []string{
	"button", `[role="button"]`, `input[type="radio"]`, `input[type="checkbox"]`,
	".tab", ".switch", ".btn", ".toggle", "label", "a", "div[onclick]", "span[onclick]",
}

const clickPricingScript = `(selectors, keywords, hrefKeywords) => {
	const elements = Array.from(document.querySelectorAll(selectors.join(', ')));
	const target = elements.find(el => {
		const text = (el.textContent || '').toLowerCase();
		const href = el.getAttribute('href') || '';
		return keywords.some(k => text.includes(k)) || hrefKeywords.some(k => href.includes(k));
	});
	if (!target) {
		return false;
	}
	target.click();
	return true;
}`

const findTogglesScript = `(selectors, keywords) => {
	const elements = [];
	selectors.forEach(sel => elements.push(...Array.from(document.querySelectorAll(sel))));
	return elements
		.filter(el => {
			const props = [
				el.textContent || '',
				el.getAttribute('aria-label') || '',
				el.getAttribute('name') || '',
				el.getAttribute('id') || '',
				typeof el.className === 'string' ? el.className : '',
			].map(p => p.toLowerCase());
			return keywords.some(k => props.some(p => p.includes(k)));
		})
		.map(el => ({text: (el.textContent || '').trim(), tag: el.tagName}));
}`

const clickToggleScript = `(selectors, text) => {
	const elements = [];
	selectors.forEach(sel => elements.push(...Array.from(document.querySelectorAll(sel))));
	const target = elements.find(el => (el.textContent || '').trim() === text);
	if (!target) {
		return false;
	}
	target.click();
	return true;
}`

const contentScript = `(selectors) => {
	for (const sel of selectors) {
		const el = document.querySelector(sel);
		if (el) {
			return el.innerText;
		}
	}
	return document.body ? document.body.innerText : '';
}`

// invoke renders a call of the function expression fn with args encoded as json
// literals.
func invoke(fn string, args ...any) (string, error) {
	encoded := make([]string, len(args))
	for i, a := range args {
		buf, err := json.Marshal(a)
		if err != nil {
			return "", err
		}
		encoded[i] = string(buf)
	}
	return fmt.Sprintf("(%s)(%s)", fn, strings.Join(encoded, ", ")), nil
}

func lowered(keywords []string) []string {
	out := make([]string, len(keywords))
	for i, k := range keywords {
		out[i] = strings.ToLower(k)
	}
	return out
}
