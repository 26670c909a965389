// Package jacoco reads JaCoCo XML coverage reports into a typed document tree.
//
// The report format is:
//
//	<report name="...">
//	  <sessioninfo id="..." start="..." dump="..."/>
//	  <package name="org/acme">
//	    <class name="org/acme/Foo" sourcefilename="Foo.java">
//	      <method name="bar" desc="()V" line="10">
//	        <counter type="LINE" missed="1" covered="2"/>
//	      </method>
//	    </class>
//	  </package>
//	</report>
//
// Attribute values are kept as text; numeric conversion happens when the
// document is mapped into the graph.
package jacoco

import "encoding/xml"

// Report is the root element of a JaCoCo XML report.
type Report struct {
	XMLName      xml.Name      `xml:"report"`
	Name         string        `xml:"name,attr"`
	SessionInfos []SessionInfo `xml:"sessioninfo"`
	Groups       []Group       `xml:"group"`
	Packages     []Package     `xml:"package"`
	Counters     []Counter     `xml:"counter"`
}

// SessionInfo describes one execution-data session merged into the report.
type SessionInfo struct {
	ID    string `xml:"id,attr"`
	Start string `xml:"start,attr"`
	Dump  string `xml:"dump,attr"`
}

// Group is an optional grouping level used by multi-module reports.
type Group struct {
	Name     string    `xml:"name,attr"`
	Groups   []Group   `xml:"group"`
	Packages []Package `xml:"package"`
	Counters []Counter `xml:"counter"`
}

type Package struct {
	Name        string       `xml:"name,attr"`
	Classes     []Class      `xml:"class"`
	SourceFiles []SourceFile `xml:"sourcefile"`
	Counters    []Counter    `xml:"counter"`
}

type Class struct {
	Name           string    `xml:"name,attr"`
	SourceFileName string    `xml:"sourcefilename,attr"`
	Methods        []Method  `xml:"method"`
	Counters       []Counter `xml:"counter"`
}

// Method carries the raw JVM descriptor in Desc and the first source line in Line.
type Method struct {
	Name     string    `xml:"name,attr"`
	Desc     string    `xml:"desc,attr"`
	Line     string    `xml:"line,attr"`
	Counters []Counter `xml:"counter"`
}

type Counter struct {
	Type    string `xml:"type,attr"`
	Missed  string `xml:"missed,attr"`
	Covered string `xml:"covered,attr"`
}

type SourceFile struct {
	Name     string    `xml:"name,attr"`
	Lines    []Line    `xml:"line"`
	Counters []Counter `xml:"counter"`
}

// Line is per-line coverage inside a source file: missed/covered
// instructions (mi/ci) and branches (mb/cb).
type Line struct {
	Nr string `xml:"nr,attr"`
	Mi string `xml:"mi,attr"`
	Ci string `xml:"ci,attr"`
	Mb string `xml:"mb,attr"`
	Cb string `xml:"cb,attr"`
}
