// Package fixture holds notebook documents shared by tests across packages.
// It has no internal imports so any package can use it without cycles.
package fixture

import (
	"os"
	"path/filepath"
	"testing"
)

// Sample is a seven-cell notebook mixing markdown and code cells, with one
// stream, one execute_result and one error output, an unexecuted code cell,
// and a markdown cell whose source is a plain string.
const Sample = `{
 "nbformat": 4,
 "nbformat_minor": 5,
 "metadata": {"kernelspec": {"name": "python3", "display_name": "Python 3"}},
 "cells": [
  {
   "cell_type": "markdown",
   "id": "intro",
   "metadata": {"tags": ["header"]},
   "source": ["# Sales analysis\n", "Quarterly numbers."]
  },
  {
   "cell_type": "code",
   "id": "load",
   "metadata": {},
   "execution_count": 1,
   "source": ["data = load()\n", "print('loaded')"],
   "outputs": [
    {"output_type": "stream", "name": "stdout", "text": ["loading data\n", "loaded\n"]}
   ]
  },
  {
   "cell_type": "markdown",
   "id": "results",
   "metadata": {},
   "source": ["## Results"]
  },
  {
   "cell_type": "code",
   "id": "total",
   "metadata": {},
   "execution_count": 2,
   "source": ["sum(data)"],
   "outputs": [
    {"output_type": "execute_result", "execution_count": 2, "metadata": {}, "data": {"text/plain": ["42"]}}
   ]
  },
  {
   "cell_type": "code",
   "id": "broken",
   "metadata": {},
   "execution_count": 3,
   "source": ["1 / 0"],
   "outputs": [
    {
     "output_type": "error",
     "ename": "ZeroDivisionError",
     "evalue": "division by zero",
     "traceback": ["Traceback (most recent call last):\n", "ZeroDivisionError: division by zero"]
    }
   ]
  },
  {
   "cell_type": "code",
   "id": "pending",
   "metadata": {},
   "execution_count": null,
   "source": ["plot(data)"],
   "outputs": []
  },
  {
   "cell_type": "markdown",
   "id": "outro",
   "metadata": {},
   "source": "The end.\nThanks."
  }
 ]
}`

// SampleMarkdown is the exact Markdown rendering of Sample.
const SampleMarkdown = "# Sales analysis\nQuarterly numbers.\n\n" +
	"```\ndata = load()\nprint('loaded')\n```\n" +
	"Output\n```\nloading data\nloaded\n```\n\n" +
	"## Results\n\n" +
	"```\nsum(data)\n```\n" +
	"Output\n```\n42\n```\n\n" +
	"```\n1 / 0\n```\n" +
	"Output\n```\ndivision by zero\nTraceback (most recent call last):\nZeroDivisionError: division by zero\n```\n\n" +
	"```\nplot(data)\n```\n\n" +
	"The end.\nThanks.\n\n"

// Minimal is the smallest valid notebook: no cells.
const Minimal = `{"nbformat": 4, "nbformat_minor": 2, "metadata": {}, "cells": []}`

// Write stores content under dir/name and returns the full path.
func Write(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}
